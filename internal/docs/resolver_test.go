package docs

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pavelanni/studyaide/internal/model"
)

// writeTestDOCX builds a minimal DOCX container with one <w:t> run per
// paragraph and writes it into dir.
func writeTestDOCX(t *testing.T, dir, name string, paragraphs ...string) {
	t.Helper()
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("create %s: %v", name, err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("create document.xml: %v", err)
	}
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	for _, p := range paragraphs {
		sb.WriteString(`<w:p><w:r><w:t>` + p + `</w:t></w:r></w:p>`)
	}
	sb.WriteString(`</w:body></w:document>`)
	if _, err := w.Write([]byte(sb.String())); err != nil {
		t.Fatalf("write document.xml: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
}

func docxRef(module, file string) model.DocumentRef {
	return model.DocumentRef{
		File:           file,
		Type:           model.DocTypeDOCX,
		Module:         module,
		CourseworkType: model.CourseworkTypeForFile(file),
		DisplayName:    model.DisplayNameForFile(file),
	}
}

func TestResolveSingleDocument(t *testing.T) {
	dir := t.TempDir()
	writeTestDOCX(t, dir, "ml_reading.docx", "Gradient descent minimizes loss.", "Overfitting hurts generalization.")

	r := NewResolver(dir, 0)
	res, err := r.Resolve([]model.DocumentRef{docxRef("Machine Learning", "ml_reading.docx")})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !strings.Contains(res.Text, "Gradient descent minimizes loss.") {
		t.Errorf("missing first paragraph in %q", res.Text)
	}
	if res.Paragraphs != 2 {
		t.Errorf("expected 2 paragraphs, got %d", res.Paragraphs)
	}
	if res.Characters != len(res.Text) {
		t.Errorf("character count %d does not match text length %d", res.Characters, len(res.Text))
	}
	if res.Truncated {
		t.Error("unexpected truncation")
	}
	// Single document gets no section header.
	if strings.Contains(res.Text, "====") {
		t.Error("single document should not carry a section header")
	}
}

func TestResolvePreservesOrderAndHeaders(t *testing.T) {
	dir := t.TempDir()
	writeTestDOCX(t, dir, "ml_coursework1.docx", "First brief.")
	writeTestDOCX(t, dir, "ml_coursework2.docx", "Second brief.")

	r := NewResolver(dir, 0)
	res, err := r.Resolve([]model.DocumentRef{
		docxRef("Machine Learning", "ml_coursework1.docx"),
		docxRef("Machine Learning", "ml_coursework2.docx"),
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	first := strings.Index(res.Text, "First brief.")
	second := strings.Index(res.Text, "Second brief.")
	if first < 0 || second < 0 || first > second {
		t.Errorf("documents not concatenated in listed order: %q", res.Text)
	}
	if !strings.Contains(res.Text, "file ml_coursework1.docx") {
		t.Error("missing section header for first document")
	}
	if len(res.Files) != 2 {
		t.Errorf("expected 2 loaded files, got %v", res.Files)
	}
}

func TestResolvePartialFailure(t *testing.T) {
	dir := t.TempDir()
	writeTestDOCX(t, dir, "present.docx", "Readable content.")

	r := NewResolver(dir, 0)
	res, err := r.Resolve([]model.DocumentRef{
		docxRef("M", "present.docx"),
		docxRef("M", "missing.docx"),
	})
	if err != nil {
		t.Fatalf("partial failure should not be fatal: %v", err)
	}
	if !strings.Contains(res.Text, "Readable content.") {
		t.Error("readable document text missing")
	}
	if len(res.Failed) != 1 || res.Failed[0].Ref.File != "missing.docx" {
		t.Errorf("expected missing.docx in Failed, got %+v", res.Failed)
	}
}

func TestResolveFailedDocumentAddsNoMetadata(t *testing.T) {
	dir := t.TempDir()
	writeTestDOCX(t, dir, "present.docx", "Readable content.")

	orig := pdfExtract
	pdfExtract = func(path string) (string, int, error) {
		return "", 7, errors.New("no text extracted")
	}
	t.Cleanup(func() { pdfExtract = orig })

	r := NewResolver(dir, 0)
	res, err := r.Resolve([]model.DocumentRef{
		docxRef("M", "present.docx"),
		{File: "scanned.pdf", Type: model.DocTypePDF, Module: "M"},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(res.Failed) != 1 || res.Failed[0].Ref.File != "scanned.pdf" {
		t.Fatalf("expected scanned.pdf in Failed, got %+v", res.Failed)
	}
	if res.Pages != 0 {
		t.Errorf("failed document counted pages: %d", res.Pages)
	}
	if res.Paragraphs != 1 {
		t.Errorf("expected 1 paragraph from the readable document, got %d", res.Paragraphs)
	}
}

func TestResolveAllFailed(t *testing.T) {
	r := NewResolver(t.TempDir(), 0)
	_, err := r.Resolve([]model.DocumentRef{
		docxRef("M", "gone1.docx"),
		docxRef("M", "gone2.docx"),
	})
	var all *AllFailedError
	if !errors.As(err, &all) {
		t.Fatalf("expected AllFailedError, got %v", err)
	}
	if len(all.Failed) != 2 {
		t.Errorf("expected 2 failed refs, got %d", len(all.Failed))
	}
}

func TestResolveUnsupportedType(t *testing.T) {
	dir := t.TempDir()
	writeTestDOCX(t, dir, "ok.docx", "Fine.")
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("plain"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewResolver(dir, 0)
	res, err := r.Resolve([]model.DocumentRef{
		docxRef("M", "ok.docx"),
		{File: "notes.txt", Module: "M"},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(res.Failed) != 1 || res.Failed[0].Ref.File != "notes.txt" {
		t.Errorf("unsupported file should be rejected per-reference, got %+v", res.Failed)
	}
}

func TestResolveTruncates(t *testing.T) {
	dir := t.TempDir()
	writeTestDOCX(t, dir, "long.docx", strings.Repeat("wordy content ", 100))

	r := NewResolver(dir, 50)
	res, err := r.Resolve([]model.DocumentRef{docxRef("M", "long.docx")})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !res.Truncated {
		t.Error("expected truncation flag")
	}
	if len(res.Text) > 50 {
		t.Errorf("text not truncated: %d bytes", len(res.Text))
	}
	// Characters reports the pre-truncation extraction size.
	if res.Characters <= 50 {
		t.Errorf("character count should reflect full extraction, got %d", res.Characters)
	}
}

func TestResolveBadPDF(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "fake.pdf"), []byte("not a pdf"), 0o644); err != nil {
		t.Fatal(err)
	}
	r := NewResolver(dir, 0)
	_, err := r.Resolve([]model.DocumentRef{{File: "fake.pdf", Type: model.DocTypePDF, Module: "M"}})
	var all *AllFailedError
	if !errors.As(err, &all) {
		t.Fatalf("expected AllFailedError for corrupt pdf, got %v", err)
	}
}

func TestCacheKey(t *testing.T) {
	refs := []model.DocumentRef{docxRef("M", "a.docx"), docxRef("M", "b.docx")}
	if CacheKey(refs) != "a.docx|b.docx" {
		t.Errorf("unexpected cache key %q", CacheKey(refs))
	}
	if CacheKey(refs[:1]) == CacheKey(refs) {
		t.Error("cache keys should differ for different sets")
	}
}
