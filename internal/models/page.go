package models

// PageDescriptor is the caller-supplied description of the page being
// navigated to. Only URL is required; everything else may be empty.
type PageDescriptor struct {
	URL         string `json:"url" validate:"required"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	H1          string `json:"h1,omitempty"`
	Keywords    string `json:"keywords,omitempty"`
	BodyText    string `json:"bodyText,omitempty"`
	SearchQuery string `json:"searchQuery,omitempty"`
}
