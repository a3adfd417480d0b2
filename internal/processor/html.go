package processor

import (
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// extractHTML returns the visible text of an HTML file with text nodes
// joined by newlines. Script, style and chrome elements are dropped first.
func (p *Processor) extractHTML(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", &ProcessingError{Path: path, Reason: "HTML extraction failed", Err: err}
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return "", &ProcessingError{Path: path, Reason: "HTML extraction failed", Err: err}
	}

	doc.Find("script, style, nav, header, footer").Remove()

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}

	var parts []string
	for _, node := range root.Nodes {
		collectText(node, &parts)
	}
	text := strings.Join(parts, "\n")

	if strings.TrimSpace(text) == "" {
		return "", &ProcessingError{Path: path, Reason: "no text could be extracted from HTML"}
	}
	return text, nil
}

// collectText appends every non-blank text node under n.
func collectText(n *html.Node, parts *[]string) {
	if n.Type == html.TextNode {
		if t := strings.TrimSpace(n.Data); t != "" {
			*parts = append(*parts, t)
		}
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, parts)
	}
}
