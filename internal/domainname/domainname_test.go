package domainname

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"https://foo.bar.co.uk/x", "bar.co.uk", true},
		{"https://example.com", "example.com", true},
		{"https://www.bbc.co.uk/news", "bbc.co.uk", true},
		{"https://accounts.google.com/signin", "google.com", true},
		{"example.com/path", "example.com", true},
		{"HTTPS://WWW.Example.COM:8443/", "example.com", true},
		{"http://localhost:3000", "localhost", true},
		{"t.co", "t.co", true},
		{"https://münchen.de", "xn--mnchen-3ya.de", true},
		{"not a url", "", false},
		{"", "", false},
		{"https://", "", false},
	}

	for _, tt := range tests {
		got, ok := Normalize(tt.in)
		assert.Equal(t, tt.wantOK, ok, "Normalize(%q) ok", tt.in)
		assert.Equal(t, tt.want, got, "Normalize(%q)", tt.in)
	}
}

func TestReduce(t *testing.T) {
	assert.Equal(t, "bar.co.uk", Reduce("a.b.foo.bar.co.uk"))
	assert.Equal(t, "youtube.com", Reduce("m.youtube.com"))
	assert.Equal(t, "sub.ab.io", Reduce("sub.ab.io"))
	assert.Equal(t, "intranet", Reduce("INTRANET"))
}

func TestMatches(t *testing.T) {
	assert.True(t, Matches("sub.example.com", "example.com"))
	assert.True(t, Matches("example.com", "example.com"))
	assert.False(t, Matches("notexample.com", "example.com"))
	assert.False(t, Matches("example.com", "sub.example.com"))
	assert.False(t, Matches("", "example.com"))
	assert.False(t, Matches("example.com", ""))
}

func TestMatchesAny(t *testing.T) {
	rules := []string{"reddit.com", " BBC.co.uk "}
	assert.True(t, MatchesAny("bbc.co.uk", rules))
	assert.True(t, MatchesAny("old.reddit.com", rules))
	assert.False(t, MatchesAny("example.com", rules))
	assert.False(t, MatchesAny("example.com", nil))
}

func TestHost(t *testing.T) {
	host, ok := Host("https://Sub.Example.com./a?b=c")
	assert.True(t, ok)
	assert.Equal(t, "sub.example.com", host)
}
