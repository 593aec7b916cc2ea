package main

import (
	"bytes"
	"html"
	"regexp"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	emoji "github.com/yuin/goldmark-emoji"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

var (
	markdown = goldmark.New(
		goldmark.WithExtensions(
			emoji.Emoji,
			extension.Strikethrough,
			extension.Table,
			extension.TaskList,
			// nil would fall back to the default email finder; an
			// empty-match regexp disables email autolinks.
			extension.NewLinkify(
				extension.WithLinkifyEmailRegexp(regexp.MustCompile(`^$`)),
			),
		),
		goldmark.WithRendererOptions(
			gmhtml.WithUnsafe(),
		),
	)

	strictPolicy  = bluemonday.StrictPolicy()
	bodySanitizer = bodyPolicy()
)

// renderBody turns a markdown body into sanitized HTML.
func renderBody(text string) string {
	return parseHTMLLessStrict(parseMarkdownToHTML(text))
}

func parseMarkdownToHTML(text string) string {
	var buf bytes.Buffer

	if err := markdown.Convert([]byte(text), &buf); err != nil {
		return text // Fall back to the original text on error
	}

	return buf.String()
}

func parseHTMLStrict(text string) string {
	// Strip all tags, then unescape entities; html/template re-escapes on output.
	return html.UnescapeString(strictPolicy.Sanitize(text))
}

func parseHTMLLessStrict(text string) string {
	return bodySanitizer.Sanitize(text)
}

// bodyPolicy returns the bluemonday policy for sponsored post and post
// bodies. UGC-like, without headings or tables.
func bodyPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()

	// Allowed block elements (no h1-h6, no tables)
	p.AllowElements("p", "br", "hr", "div", "span")
	p.AllowElements("blockquote", "pre")
	p.AllowElements("ul", "ol", "li", "dl", "dt", "dd")

	// Inline formatting
	p.AllowElements("b", "i", "strong", "em", "u", "s", "strike", "del", "ins")
	p.AllowElements("sub", "sup", "small", "mark")
	p.AllowElements("abbr", "acronym", "cite", "dfn", "kbd", "samp", "var")

	// Code
	p.AllowElements("code")
	p.AllowAttrs("class").Matching(regexp.MustCompile(`^language-[\w-]+$`)).OnElements("code")

	// Links
	p.AllowAttrs("href").OnElements("a")
	p.AllowAttrs("title").OnElements("a")
	p.AllowRelativeURLs(true)
	p.RequireNoFollowOnLinks(true)
	p.RequireNoReferrerOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)

	// Images
	p.AllowImages()

	// Task lists (GFM)
	p.AllowAttrs("type", "disabled", "checked").OnElements("input")

	return p
}
