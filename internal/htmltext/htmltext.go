// Package htmltext converts raw HTML bytes into plain text for the bounded
// fetcher. Adapted from internal/extract.FromHTML's tokenized-tree walk
// (golang.org/x/net/html, skip script/style/nav/footer/aside/iframe and
// cookie-consent containers, newline at block boundaries), trimmed to a
// single Extract(string) string entry point since the fetcher only needs
// body text, not a separate title.
package htmltext

import (
	"strings"

	"golang.org/x/net/html"
)

var skipTags = map[string]struct{}{
	"script":   {},
	"style":    {},
	"noscript": {},
	"nav":      {},
	"footer":   {},
	"aside":    {},
	"iframe":   {},
}

var blockTags = map[string]struct{}{
	"p": {}, "h1": {}, "h2": {}, "h3": {}, "h4": {}, "h5": {}, "h6": {},
	"li": {}, "ul": {}, "ol": {}, "br": {}, "hr": {},
	"tr": {}, "table": {}, "section": {}, "article": {}, "header": {}, "div": {},
}

// Extract returns the plain-text rendering of HTML input: the <main> or
// <article> subtree when present, else <body>, with boilerplate elements
// dropped and whitespace collapsed.
func Extract(input string) string {
	node, err := html.Parse(strings.NewReader(input))
	if err != nil || node == nil {
		return ""
	}

	content := findFirst(node, "main")
	if content == nil {
		content = findFirst(node, "article")
	}
	if content == nil {
		content = findFirst(node, "body")
	}

	var b strings.Builder
	if content != nil {
		collectText(&b, content, false)
	}
	return collapseWhitespace(b.String())
}

func findFirst(n *html.Node, tag string) *html.Node {
	var res *html.Node
	var dfs func(*html.Node)
	dfs = func(cur *html.Node) {
		if res != nil {
			return
		}
		if cur.Type == html.ElementNode && strings.EqualFold(cur.Data, tag) {
			res = cur
			return
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			dfs(c)
			if res != nil {
				return
			}
		}
	}
	dfs(n)
	return res
}

func collectText(b *strings.Builder, n *html.Node, inPre bool) {
	if n.Type == html.ElementNode {
		if isCookieConsentContainer(n) {
			return
		}
		name := strings.ToLower(n.Data)
		if _, skip := skipTags[name]; skip {
			return
		}
		switch name {
		case "pre", "code":
			inPre = true
		}
		if _, block := blockTags[name]; block {
			b.WriteString("\n")
		}
	}

	if n.Type == html.TextNode {
		data := n.Data
		if !inPre {
			data = strings.ReplaceAll(data, "\t", " ")
			data = strings.ReplaceAll(data, "\r", " ")
			data = strings.ReplaceAll(data, " ", " ")
		}
		b.WriteString(data)
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(b, c, inPre)
	}

	if n.Type == html.ElementNode {
		name := strings.ToLower(n.Data)
		switch name {
		case "p", "h1", "h2", "h3", "h4", "h5", "h6":
			b.WriteString("\n\n")
		case "li":
			b.WriteString("\n")
		case "pre", "code":
			b.WriteString("\n")
		}
	}
}

// isCookieConsentContainer reports whether n looks like a cookie/consent
// banner based on its id/class/role/aria-label/data-* attributes.
func isCookieConsentContainer(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	for _, attr := range n.Attr {
		key := strings.ToLower(attr.Key)
		if key != "id" && key != "class" && key != "role" && key != "aria-label" && !strings.HasPrefix(key, "data-") {
			continue
		}
		val := strings.ToLower(attr.Val)
		for _, needle := range []string{"cookie", "consent", "gdpr", "cookie-banner", "cookiebar", "consent-banner", "consent-manager"} {
			if strings.Contains(val, needle) {
				return true
			}
		}
	}
	return false
}

// collapseWhitespace collapses runs of whitespace to single spaces within a
// line and collapses repeated blank lines to one, trimming leading and
// trailing blank lines.
func collapseWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(collapseSpaces(line))
		if trimmed == "" {
			if len(out) > 0 && out[len(out)-1] == "" {
				continue
			}
			out = append(out, "")
			continue
		}
		out = append(out, trimmed)
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	for len(out) > 0 && out[0] == "" {
		out = out[1:]
	}
	return strings.Join(out, "\n")
}

func collapseSpaces(s string) string {
	var b strings.Builder
	lastSpace := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\r' {
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
			continue
		}
		b.WriteRune(r)
		lastSpace = false
	}
	return b.String()
}
