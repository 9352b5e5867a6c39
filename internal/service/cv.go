package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Shivanand-hulikatti/advisor-match/internal/extract"
	"github.com/Shivanand-hulikatti/advisor-match/internal/model"
	"github.com/Shivanand-hulikatti/advisor-match/internal/repository"
)

const (
	// MinCVLength is the shortest extracted CV text accepted for import.
	MinCVLength = 50

	maxCVDescription = 1000
)

var emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)

type cvField int

const (
	cvNone cvField = iota
	cvName
	cvTitle
	cvDepartment
	cvTopics
	cvExpertise
	cvEmail
	cvBio
)

var cvLabels = map[string]cvField{
	"name":                 cvName,
	"full name":            cvName,
	"title":                cvTitle,
	"position":             cvTitle,
	"role":                 cvTitle,
	"department":           cvDepartment,
	"faculty":              cvDepartment,
	"school":               cvDepartment,
	"research interests":   cvTopics,
	"interests":            cvTopics,
	"research areas":       cvTopics,
	"research":             cvTopics,
	"expertise":            cvExpertise,
	"areas of expertise":   cvExpertise,
	"skills":               cvExpertise,
	"email":                cvEmail,
	"e-mail":               cvEmail,
	"contact":              cvEmail,
	"bio":                  cvBio,
	"biography":            cvBio,
	"summary":              cvBio,
	"about":                cvBio,
	"profile":              cvBio,
	"research statement":   cvBio,
	"professional summary": cvBio,
}

// ImportCV builds or refreshes the caller's profile from an uploaded CV.
// Labelled lines ("Department: ...") and headed sections fill the profile
// fields; fields the CV does not mention keep their current values. The CV
// itself is not retained. created reports whether a new profile was made.
func (s *ProfileService) ImportCV(ctx context.Context, in SubmitInput) (p *model.Profile, created bool, err error) {
	if in.UserID == "" {
		return nil, false, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	kind := resolveKind(in.Filename, in.ContentType)
	if !kind.Supported() {
		return nil, false, fmt.Errorf("%w: %q", extract.ErrUnsupportedFormat, kind)
	}
	text, err := extract.Extract(in.Content, kind)
	if err != nil {
		return nil, false, err
	}
	if utf8.RuneCountInString(text) < MinCVLength {
		return nil, false, fmt.Errorf("%w: CV must contain at least %d characters of text", ErrInvalidInput, MinCVLength)
	}
	parsed := parseCV(text)

	existing, err := s.profiles.GetByUserID(ctx, in.UserID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		if parsed.Name == "" {
			return nil, false, fmt.Errorf("%w: no name found in CV", ErrInvalidInput)
		}
		p, err = s.Create(ctx, in.UserID, parsed)
		if err != nil {
			return nil, false, err
		}
		s.log.Info("profile imported from CV", "profile_id", p.ID, "user_id", in.UserID)
		return p, true, nil
	case err != nil:
		return nil, false, err
	}

	p, err = s.Update(ctx, in.UserID, existing.ID, mergeCV(existing, parsed))
	if err != nil {
		return nil, false, err
	}
	s.log.Info("profile refreshed from CV", "profile_id", p.ID, "user_id", in.UserID)
	return p, false, nil
}

// mergeCV overlays the non-empty fields of parsed on p.
func mergeCV(p *model.Profile, parsed model.ProfileRequest) model.ProfileRequest {
	req := model.ProfileRequest{
		Name:         p.Name,
		Title:        p.Title,
		Department:   p.Department,
		Topics:       p.Topics,
		Expertise:    p.Expertise,
		Description:  p.Description,
		ContactEmail: p.ContactEmail,
	}
	overlay := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	overlay(&req.Name, parsed.Name)
	overlay(&req.Title, parsed.Title)
	overlay(&req.Department, parsed.Department)
	overlay(&req.Description, parsed.Description)
	overlay(&req.ContactEmail, parsed.ContactEmail)
	if len(parsed.Topics) > 0 {
		req.Topics = parsed.Topics
	}
	if len(parsed.Expertise) > 0 {
		req.Expertise = parsed.Expertise
	}
	return req
}

// parseCV pulls profile fields out of normalised CV text.
func parseCV(text string) model.ProfileRequest {
	var (
		req     model.ProfileRequest
		section = cvNone
		bio     []string
	)
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			section = cvNone
			continue
		}

		if field, value, ok := labelled(line); ok {
			section = cvNone
			if value == "" {
				section = field
				continue
			}
			assignCV(&req, field, value, &bio)
			continue
		}
		if section != cvNone {
			assignCV(&req, section, stripBullet(line), &bio)
			continue
		}
		if i == 0 && looksLikeName(line) {
			req.Name = line
		}
	}

	if req.ContactEmail == "" {
		req.ContactEmail = emailPattern.FindString(text)
	}
	if !isValidEmail(req.ContactEmail) {
		req.ContactEmail = ""
	}
	req.Description = strings.Join(bio, " ")
	if req.Description == "" {
		req.Description = text
	}
	req.Description = truncateRunes(req.Description, maxCVDescription)
	return req
}

func assignCV(req *model.ProfileRequest, field cvField, value string, bio *[]string) {
	switch field {
	case cvName:
		req.Name = value
	case cvTitle:
		if req.Title == "" {
			req.Title = value
		}
	case cvDepartment:
		if req.Department == "" {
			req.Department = value
		}
	case cvTopics:
		req.Topics = appendItems(req.Topics, value)
	case cvExpertise:
		req.Expertise = appendItems(req.Expertise, value)
	case cvEmail:
		if req.ContactEmail == "" {
			req.ContactEmail = emailPattern.FindString(value)
		}
	case cvBio:
		*bio = append(*bio, value)
	}
}

// labelled splits "Label: value" or a bare "Label" heading.
func labelled(line string) (cvField, string, bool) {
	label, value, found := strings.Cut(line, ":")
	if !found {
		label = line
	}
	field, ok := cvLabels[strings.ToLower(strings.TrimSpace(label))]
	if !ok {
		return cvNone, "", false
	}
	return field, strings.TrimSpace(value), true
}

func appendItems(items []string, value string) []string {
	for _, item := range strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == ';' || r == '|' || r == '•'
	}) {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func stripBullet(line string) string {
	return strings.TrimSpace(strings.TrimLeft(line, "-*•·"))
}

// looksLikeName accepts a short line of letters such as "Dr. Ada Lovelace".
func looksLikeName(line string) bool {
	switch strings.ToLower(line) {
	case "curriculum vitae", "resume", "résumé", "cv":
		return false
	}
	words := strings.Fields(line)
	if len(words) < 2 || len(words) > 6 || strings.Contains(line, "@") {
		return false
	}
	for _, r := range line {
		if unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:n]))
}
