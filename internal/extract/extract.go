// Package extract turns uploaded content into canonical text for embedding.
package extract

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	// ErrUnsupportedFormat is returned for content kinds that cannot be extracted.
	ErrUnsupportedFormat = errors.New("unsupported document format")
	// ErrEmptyContent is returned when extraction yields no meaningful characters.
	ErrEmptyContent = errors.New("document has no extractable text")
	// ErrMalformed is returned when document bytes cannot be parsed as the declared kind.
	ErrMalformed = errors.New("malformed document")
)

// Kind is the declared format of raw content.
type Kind string

const (
	KindText Kind = "text"
	KindPDF  Kind = "pdf"
	KindDOCX Kind = "docx"
)

// KindFromFilename resolves a kind from a file extension. Unknown extensions
// return the extension itself so the caller's error names it.
func KindFromFilename(name string) Kind {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".txt", ".text", ".md":
		return KindText
	case ".pdf":
		return KindPDF
	case ".docx":
		return KindDOCX
	}
	return Kind(strings.TrimPrefix(ext, "."))
}

// KindFromMIME resolves a kind from a MIME type, ignoring parameters.
func KindFromMIME(mime string) Kind {
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	switch strings.ToLower(strings.TrimSpace(mime)) {
	case "text/plain", "text/markdown":
		return KindText
	case "application/pdf":
		return KindPDF
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return KindDOCX
	}
	return ""
}

// Supported reports whether k can be extracted.
func (k Kind) Supported() bool {
	return k == KindText || k == KindPDF || k == KindDOCX
}

// Extract returns the canonical text of content.
func Extract(content []byte, kind Kind) (string, error) {
	var (
		raw string
		err error
	)
	switch kind {
	case KindText:
		raw = string(content)
	case KindPDF:
		raw, err = extractPDF(content)
	case KindDOCX:
		raw, err = extractDOCX(content)
	default:
		return "", ErrUnsupportedFormat
	}
	if err != nil {
		return "", err
	}
	text := Normalize(raw)
	if !meaningful(text) {
		return "", ErrEmptyContent
	}
	return text, nil
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Normalize converts s to NFC UTF-8, collapses whitespace inside each line,
// keeps at most one blank line between paragraphs and trims the result.
func Normalize(s string) string {
	s = string(bytes.TrimPrefix([]byte(s), utf8BOM))
	s = strings.ToValidUTF8(s, "\uFFFD")
	s = norm.NFC.String(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	var b strings.Builder
	blank := false
	for _, line := range strings.Split(s, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			blank = b.Len() > 0
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
			if blank {
				b.WriteByte('\n')
			}
		}
		blank = false
		b.WriteString(strings.Join(fields, " "))
	}
	return b.String()
}

func meaningful(s string) bool {
	for _, r := range s {
		if !unicode.IsSpace(r) && !unicode.IsControl(r) && r != unicode.ReplacementChar {
			return true
		}
	}
	return false
}
