package domain

import (
	"net/url"
	"strings"
)

const untitled = "Untitled"

// Result is one retrieved search document. Score is nil when the provider
// did not return one.
type Result struct {
	Text          string   `json:"text"`
	Score         *float64 `json:"score,omitempty"`
	URL           string   `json:"url"`
	Title         string   `json:"title,omitempty"`
	PublishedDate string   `json:"publishedDate,omitempty"`
	Author        string   `json:"author,omitempty"`
}

// ScoreOrZero returns the relevance score, treating a missing score as 0.
func (r Result) ScoreOrZero() float64 {
	if r.Score == nil {
		return 0
	}
	return *r.Score
}

// DisplayTitle returns the title to show for the result: the title itself,
// then the URL host, then "Untitled".
func (r Result) DisplayTitle() string {
	if t := strings.TrimSpace(r.Title); t != "" {
		return t
	}
	if u, err := url.Parse(strings.TrimSpace(r.URL)); err == nil && u.Host != "" {
		return strings.TrimPrefix(u.Host, "www.")
	}
	return untitled
}
