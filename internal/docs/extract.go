package docs

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
)

var (
	pdfExtract  = extractPDF
	docxExtract = extractDOCX
)

// extractPDF extracts text page by page. Pages that fail to extract are
// skipped with a warning. Returns the text and the page count.
func extractPDF(path string) (string, int, error) {
	f, r, err := pdflib.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	total := r.NumPage()
	var sb strings.Builder
	extracted := 0
	for i := 1; i <= total; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			slog.Warn("pdf page extraction failed", "file", path, "page", i, "error", err)
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		fmt.Fprintf(&sb, "\n--- Page %d ---\n", i)
		sb.WriteString(text)
		extracted++
	}
	if extracted == 0 {
		return "", total, fmt.Errorf("no text extracted from %s", path)
	}
	return sb.String(), total, nil
}

// extractDOCX pulls paragraph text out of word/document.xml. DOCX is a zip
// container; the text lives in <w:t> runs grouped by <w:p> paragraphs.
// Returns the text and the count of non-empty paragraphs.
func extractDOCX(path string) (string, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", 0, fmt.Errorf("read docx: %w", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, fmt.Errorf("docx is not a valid zip container: %w", err)
	}

	var doc *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return "", 0, fmt.Errorf("docx missing word/document.xml")
	}

	rc, err := doc.Open()
	if err != nil {
		return "", 0, fmt.Errorf("open document.xml: %w", err)
	}
	defer rc.Close()
	raw, err := io.ReadAll(rc)
	if err != nil {
		return "", 0, fmt.Errorf("read document.xml: %w", err)
	}

	dec := xml.NewDecoder(bytes.NewReader(raw))
	var out strings.Builder
	var para strings.Builder
	paragraphs := 0
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", 0, fmt.Errorf("parse document.xml: %w", err)
		}
		switch el := tok.(type) {
		case xml.StartElement:
			if el.Name.Local == "t" {
				var run string
				if err := dec.DecodeElement(&run, &el); err != nil {
					continue
				}
				para.WriteString(run)
			}
		case xml.EndElement:
			if el.Name.Local == "p" {
				text := strings.TrimSpace(para.String())
				para.Reset()
				if text != "" {
					out.WriteString(text)
					out.WriteString("\n")
					paragraphs++
				}
			}
		}
	}

	if paragraphs == 0 {
		return "", 0, fmt.Errorf("no text extracted from %s", path)
	}
	return out.String(), paragraphs, nil
}
