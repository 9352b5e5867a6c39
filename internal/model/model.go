// Package model defines the core domain types for the advisor matching system.
package model

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Profile is a professor profile that students are matched against.
type Profile struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Name          string    `json:"name"`
	Title         string    `json:"title"`
	Department    string    `json:"department"`
	Topics        []string  `json:"topics"`
	Expertise     []string  `json:"expertise"`
	Description   string    `json:"description"`
	ContactEmail  string    `json:"contact_email,omitempty"`
	Capacity      int       `json:"capacity"`
	AcceptedCount int       `json:"accepted_count"`
	ProfileText   string    `json:"-"`
	Embedding     []float32 `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Remaining returns the number of open supervision slots.
func (p *Profile) Remaining() int {
	if n := p.Capacity - p.AcceptedCount; n > 0 {
		return n
	}
	return 0
}

// IsFull returns true when no slots remain.
func (p *Profile) IsFull() bool {
	return p.AcceptedCount >= p.Capacity
}

// IsComplete reports whether the profile carries enough information to be
// matched: name, title and department plus at least one content field.
func (p *Profile) IsComplete() bool {
	hasBasic := p.Name != "" && p.Title != "" && p.Department != ""
	hasContent := len(p.Topics) > 0 || len(p.Expertise) > 0 || p.Description != ""
	return hasBasic && hasContent
}

// GenerateText builds the text that gets embedded for this profile.
func (p *Profile) GenerateText() string {
	parts := []string{
		"Name: " + p.Name,
		"Title: " + p.Title,
		"Department: " + p.Department,
	}
	if p.Description != "" {
		parts = append(parts, "Bio: "+p.Description)
	}
	if len(p.Topics) > 0 {
		parts = append(parts, "Research interests: "+strings.Join(p.Topics, ", "))
	}
	if len(p.Expertise) > 0 {
		parts = append(parts, "Expertise: "+strings.Join(p.Expertise, ", "))
	}
	return strings.Join(parts, "\n")
}

// Clone returns a deep copy so callers can hand profiles across goroutines.
func (p Profile) Clone() Profile {
	p.Topics = append([]string(nil), p.Topics...)
	p.Expertise = append([]string(nil), p.Expertise...)
	p.Embedding = append([]float32(nil), p.Embedding...)
	return p
}

// QueryDocument is a student's submission after text extraction and embedding.
// It is never mutated once embedded; a new submission creates a new document.
type QueryDocument struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Filename  string    `json:"filename,omitempty"`
	Kind      string    `json:"kind"`
	ObjectKey string    `json:"object_key,omitempty"`
	Size      int       `json:"size"`
	Text      string    `json:"-"`
	Embedding []float32 `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// MatchResult is one ranked candidate for a query. It is a read-time
// projection and is never stored.
type MatchResult struct {
	QueryID   string  `json:"query_id,omitempty"`
	ProfileID string  `json:"profile_id"`
	Score     float64 `json:"score"`
	Rank      int     `json:"rank"`
}

// Percentage returns the score as a percentage rounded to two decimals.
func (m MatchResult) Percentage() float64 {
	return math.Round(m.Score*10000) / 100
}

// ProfileRequest is the payload for creating or updating a profile.
type ProfileRequest struct {
	Name         string   `json:"name"`
	Title        string   `json:"title"`
	Department   string   `json:"department"`
	Topics       []string `json:"topics"`
	Expertise    []string `json:"expertise"`
	Description  string   `json:"description"`
	ContactEmail string   `json:"contact_email"`
	Capacity     *int     `json:"capacity"`
}

// Validate trims the request and checks field bounds.
func (r *ProfileRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	r.Title = strings.TrimSpace(r.Title)
	r.Department = strings.TrimSpace(r.Department)
	r.Description = strings.TrimSpace(r.Description)
	r.Topics = cleanList(r.Topics)
	r.Expertise = cleanList(r.Expertise)
	if r.Name == "" {
		return fmt.Errorf("name is required")
	}
	if r.Capacity != nil && *r.Capacity < 0 {
		return fmt.Errorf("capacity must not be negative")
	}
	return nil
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// MatchRequest is the payload for POST /match.
type MatchRequest struct {
	DocumentID string   `json:"document_id"`
	Text       string   `json:"text"`
	TopK       int      `json:"top_k"`
	MinScore   *float64 `json:"min_score"`
}

// MatchView is a match result enriched with the profile it points at.
type MatchView struct {
	MatchResult
	Percentage float64  `json:"match_percentage"`
	Name       string   `json:"name"`
	Title      string   `json:"title"`
	Department string   `json:"department"`
	Topics     []string `json:"topics"`
	Expertise  []string `json:"expertise"`
	Capacity   int      `json:"capacity"`
}

// SubmitTextRequest is the JSON payload for submitting free text.
type SubmitTextRequest struct {
	Text string `json:"text"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}
