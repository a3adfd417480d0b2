package processor

import (
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

// extractPDF returns the concatenated page texts and the page count.
// Pages that fail to extract are skipped; a PDF yielding no text at all is
// an error.
func (p *Processor) extractPDF(path string) (string, int, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", 0, &ProcessingError{Path: path, Reason: "PDF extraction failed", Err: err}
	}
	defer f.Close()

	pageCount := reader.NumPage()
	p.logger.Debug("opened pdf", zap.Int("pages", pageCount))

	var parts []string
	for i := 1; i <= pageCount; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			p.logger.Warn("failed to extract pdf page", zap.Int("page", i), zap.Error(err))
			continue
		}
		if strings.TrimSpace(text) != "" {
			parts = append(parts, text)
		}
	}

	if len(parts) == 0 {
		return "", 0, &ProcessingError{Path: path, Reason: "no text could be extracted from PDF"}
	}
	return strings.Join(parts, "\n\n"), pageCount, nil
}
