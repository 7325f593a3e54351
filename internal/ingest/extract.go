// Package ingest turns user-supplied sources (text, HTML pages, PDF
// files) into domain evidence that sharpens the stored user profile.
package ingest

import (
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"
)

// FromPlain normalises plain text: collapses runs of whitespace and
// trims the result.
func FromPlain(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// FromHTML extracts the visible text of an HTML document, skipping
// script and style subtrees.
func FromHTML(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("parsing html: %w", err)
	}

	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript":
				return
			}
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return FromPlain(b.String()), nil
}

// FromPDF extracts the plain text of a PDF file.
func FromPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf %s: %w", path, err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}
	text, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}
	return FromPlain(string(text)), nil
}
