// Package docs resolves document references into extracted plain text for
// prompt grounding. PDF and DOCX are the only supported formats.
package docs

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/pavelanni/studyaide/internal/model"
)

// FailedRef records one reference that could not be resolved.
type FailedRef struct {
	Ref model.DocumentRef
	Err error
}

// AllFailedError is returned when every reference in a batch failed.
type AllFailedError struct {
	Failed []FailedRef
}

func (e *AllFailedError) Error() string {
	return fmt.Sprintf("all %d documents failed to load", len(e.Failed))
}

// Resolved is the combined extraction result for an ordered set of references.
// Failed lists references that were excluded; it is non-empty on partial
// failure and callers must surface it rather than dropping it.
type Resolved struct {
	Text       string
	Files      []string
	Pages      int
	Paragraphs int
	Characters int
	Truncated  bool
	Failed     []FailedRef
}

// Resolver extracts text from files under a documents directory.
type Resolver struct {
	dir    string
	maxLen int
}

// NewResolver creates a Resolver rooted at dir. Combined text longer than
// maxLen characters is truncated from the end.
func NewResolver(dir string, maxLen int) *Resolver {
	return &Resolver{dir: dir, maxLen: maxLen}
}

// Resolve extracts and concatenates text for the given references, preserving
// their order. Unreadable or unsupported references are excluded from the
// text and reported in Failed; Resolve returns an AllFailedError only when no
// reference could be read.
func (r *Resolver) Resolve(refs []model.DocumentRef) (*Resolved, error) {
	if len(refs) == 0 {
		return nil, fmt.Errorf("no documents selected")
	}

	res := &Resolved{}
	var sb strings.Builder

	for _, ref := range refs {
		path := filepath.Join(r.dir, ref.File)

		var text string
		var units int
		var err error
		switch ref.Type {
		case model.DocTypePDF:
			text, units, err = pdfExtract(path)
		case model.DocTypeDOCX:
			text, units, err = docxExtract(path)
		default:
			err = fmt.Errorf("unsupported document type %q", filepath.Ext(ref.File))
		}
		if err != nil {
			slog.Warn("document unavailable", "file", ref.File, "error", err)
			res.Failed = append(res.Failed, FailedRef{Ref: ref, Err: err})
			continue
		}
		switch ref.Type {
		case model.DocTypePDF:
			res.Pages += units
		case model.DocTypeDOCX:
			res.Paragraphs += units
		}

		if len(refs) > 1 {
			fmt.Fprintf(&sb, "\n\n==== %s (%s), file %s ====\n", ref.DisplayName, ref.CourseworkType, ref.File)
		}
		sb.WriteString(text)
		res.Files = append(res.Files, ref.File)
	}

	if len(res.Files) == 0 {
		return nil, &AllFailedError{Failed: res.Failed}
	}

	res.Text = sb.String()
	res.Characters = len(res.Text)
	if r.maxLen > 0 && len(res.Text) > r.maxLen {
		res.Text = truncateAtRune(res.Text, r.maxLen)
		res.Truncated = true
	}
	return res, nil
}

// CacheKey identifies a resolved document set for per-session caching.
func CacheKey(refs []model.DocumentRef) string {
	files := make([]string, len(refs))
	for i, ref := range refs {
		files[i] = ref.File
	}
	return strings.Join(files, "|")
}

// truncateAtRune cuts s to at most max bytes without splitting a UTF-8 rune.
func truncateAtRune(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && s[max]&0xC0 == 0x80 {
		max--
	}
	return s[:max]
}
