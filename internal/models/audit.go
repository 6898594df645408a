package models

import (
	"time"

	"github.com/google/uuid"
)

// Decision is the binary verdict returned to the browser agent.
type Decision string

const (
	DecisionAllow Decision = "ALLOW"
	DecisionBlock Decision = "BLOCK"
)

// Reason tags why a decision was reached.
type Reason string

const (
	ReasonInfra       Reason = "infra"
	ReasonSearch      Reason = "search"
	ReasonNavigation  Reason = "navigation"
	ReasonAllowList   Reason = "allow-list"
	ReasonBlockList   Reason = "block-list"
	ReasonAIDecision  Reason = "ai-decision"
	ReasonServerError Reason = "server-error"
)

// AuditEntry is one persisted decision. Write-only from the service's side.
type AuditEntry struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	URL       string    `json:"url" db:"url"`
	Domain    string    `json:"domain" db:"domain"`
	Decision  Decision  `json:"decision" db:"decision"`
	Reason    Reason    `json:"reason" db:"reason"`
	PageTitle string    `json:"page_title" db:"page_title"`
	Timestamp time.Time `json:"timestamp" db:"created_at"`
}
