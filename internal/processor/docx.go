package processor

import (
	"archive/zip"
	"io"
	"strings"

	"github.com/beevik/etree"
)

// extractDOCX returns the text of a DOCX file: body-level paragraphs first,
// then table cell contents, joined by blank lines.
func (p *Processor) extractDOCX(path string) (string, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return "", &ProcessingError{Path: path, Reason: "DOCX extraction failed", Err: err}
	}
	defer archive.Close()

	var docXML []byte
	for _, f := range archive.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", &ProcessingError{Path: path, Reason: "DOCX extraction failed", Err: err}
		}
		docXML, err = io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", &ProcessingError{Path: path, Reason: "DOCX extraction failed", Err: err}
		}
		break
	}
	if docXML == nil {
		return "", &ProcessingError{Path: path, Reason: "DOCX extraction failed: word/document.xml missing"}
	}

	tree := etree.NewDocument()
	if err := tree.ReadFromBytes(docXML); err != nil {
		return "", &ProcessingError{Path: path, Reason: "DOCX extraction failed", Err: err}
	}

	body := tree.FindElement("//w:body")
	if body == nil {
		return "", &ProcessingError{Path: path, Reason: "DOCX extraction failed: document body missing"}
	}

	var parts []string

	// Body-level paragraphs. Paragraphs inside tables are collected below
	// with their cells.
	for _, para := range body.SelectElements("w:p") {
		if text := runText(para); text != "" {
			parts = append(parts, text)
		}
	}

	for _, table := range body.FindElements(".//w:tbl") {
		for _, row := range table.FindElements(".//w:tr") {
			for _, cell := range row.SelectElements("w:tc") {
				if text := runText(cell); text != "" {
					parts = append(parts, text)
				}
			}
		}
	}

	if len(parts) == 0 {
		return "", &ProcessingError{Path: path, Reason: "no text could be extracted from DOCX"}
	}
	return strings.Join(parts, "\n\n"), nil
}

// runText concatenates the w:t run texts under an element.
func runText(e *etree.Element) string {
	var b strings.Builder
	for _, t := range e.FindElements(".//w:t") {
		b.WriteString(t.Text())
	}
	return strings.TrimSpace(b.String())
}
