// Package htmlconv turns fetched newsletter pages into markdown the model can
// read without drowning in navigation and script noise.
package htmlconv

import (
	"bytes"
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/net/html"

	"github.com/codefionn/tldrbot/internal/logger"
)

var (
	htmlTagPattern    = regexp.MustCompile(`<([a-zA-Z][a-zA-Z0-9]*)\b[^>]*>`)
	multipleNewlines  = regexp.MustCompile(`\n{3,}`)
	trailingSpaceLine = regexp.MustCompile(`[ \t]+\n`)
)

// Number of tags after which text is treated as HTML.
const htmlTagThreshold = 3

var unwantedTags = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"meta":     true,
	"link":     true,
	"head":     true,
	"header":   true,
	"footer":   true,
	"nav":      true,
	"aside":    true,
	"iframe":   true,
	"svg":      true,
	"form":     true,
	"button":   true,
}

var contentIdentifiers = []string{
	"content", "main", "article", "post", "entry", "story",
	"newsletter", "issue", "body-content", "page-content", "main-content",
}

// ConvertIfHTML converts input to markdown when it looks like HTML.
// The boolean reports whether a conversion happened.
func ConvertIfHTML(input string) (string, bool) {
	if !isHTML(input) {
		return input, false
	}

	markdown, err := Convert(input)
	if err != nil {
		logger.Warn("htmlconv: conversion failed: %v", err)
		return input, false
	}
	return markdown, true
}

// Convert reduces document to its main content and renders it as markdown.
func Convert(document string) (string, error) {
	cleaned, err := preprocessHTML(document)
	if err != nil {
		logger.Debug("htmlconv: preprocess failed, using raw document: %v", err)
		cleaned = document
	}

	markdown, err := htmltomarkdown.ConvertString(cleaned)
	if err != nil {
		return "", err
	}

	markdown = cleanMarkdown(markdown)
	logger.Debug("htmlconv: converted %d bytes of HTML to %d bytes of markdown", len(document), len(markdown))
	return markdown, nil
}

func preprocessHTML(input string) (string, error) {
	doc, err := html.Parse(strings.NewReader(input))
	if err != nil {
		return input, err
	}

	root := findMainContent(doc)
	if root == nil {
		root = doc
	}
	removeUnwantedNodes(root)

	var buf bytes.Buffer
	if err := html.Render(&buf, root); err != nil {
		return input, err
	}
	return buf.String(), nil
}

func isHTML(input string) bool {
	trimmed := strings.TrimSpace(input)
	lowerPrefix := strings.ToLower(trimmed[:min(len(trimmed), 16)])
	if strings.HasPrefix(lowerPrefix, "<!doctype") || strings.HasPrefix(lowerPrefix, "<html") {
		return true
	}

	tagCount := len(htmlTagPattern.FindAllString(input, -1))
	if tagCount == 0 {
		return false
	}
	if tagCount >= htmlTagThreshold {
		return true
	}

	lower := strings.ToLower(input)
	hasStructure := strings.Contains(lower, "<body") ||
		strings.Contains(lower, "<div") ||
		strings.Contains(lower, "<table") ||
		strings.Contains(lower, "<ul>") ||
		strings.Contains(lower, "<ol>") ||
		strings.Contains(lower, "<h1") ||
		strings.Contains(lower, "<h2")

	return tagCount >= 2 && hasStructure
}

func cleanMarkdown(markdown string) string {
	markdown = trailingSpaceLine.ReplaceAllString(markdown, "\n")
	markdown = multipleNewlines.ReplaceAllString(markdown, "\n\n")
	return strings.TrimSpace(markdown)
}

func removeUnwantedNodes(n *html.Node) {
	child := n.FirstChild
	for child != nil {
		next := child.NextSibling
		removeUnwantedNodes(child)
		child = next
	}

	if n.Type == html.ElementNode && unwantedTags[strings.ToLower(n.Data)] && n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// findMainContent picks the best content root: <main>, then <article>, then
// an element whose id or class names it as content, then <body>.
func findMainContent(doc *html.Node) *html.Node {
	if doc.Type != html.DocumentNode {
		return doc
	}

	var mainNode, articleNode, identified, body *html.Node
	var search func(n *html.Node)
	search = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch strings.ToLower(n.Data) {
			case "main":
				if mainNode == nil {
					mainNode = n
				}
			case "article":
				if articleNode == nil {
					articleNode = n
				}
			case "body":
				if body == nil {
					body = n
				}
			default:
				if identified == nil && hasContentIdentifier(n) {
					identified = n
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			search(c)
		}
	}
	search(doc)

	for _, candidate := range []*html.Node{mainNode, articleNode, identified, body} {
		if candidate != nil {
			return candidate
		}
	}
	return doc
}

func hasContentIdentifier(n *html.Node) bool {
	for _, attr := range n.Attr {
		var values []string
		switch strings.ToLower(attr.Key) {
		case "id":
			values = []string{attr.Val}
		case "class":
			values = strings.Fields(attr.Val)
		default:
			continue
		}
		for _, v := range values {
			lower := strings.ToLower(v)
			for _, id := range contentIdentifiers {
				if strings.Contains(lower, id) {
					return true
				}
			}
		}
	}
	return false
}
