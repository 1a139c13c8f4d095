package htmltext

import (
	"strings"
	"testing"
)

func TestExtractStripsScriptStyleAndTags(t *testing.T) {
	in := `<html><head><style>.a{color:red}</style></head><body>
<script>alert(1)</script>
<h1>Title</h1>
<p>Hello &amp; welcome &nbsp;friend</p>
<noscript>no js</noscript>
</body></html>`
	got := Extract(in)
	if strings.Contains(got, "alert(1)") {
		t.Fatalf("script content leaked: %q", got)
	}
	if strings.Contains(got, "color:red") {
		t.Fatalf("style content leaked: %q", got)
	}
	if strings.Contains(got, "no js") {
		t.Fatalf("noscript content leaked: %q", got)
	}
	if !strings.Contains(got, "Title") || !strings.Contains(got, "Hello & welcome  friend") && !strings.Contains(got, "Hello & welcome friend") {
		t.Fatalf("expected decoded text, got %q", got)
	}
	if strings.Contains(got, "<") || strings.Contains(got, ">") {
		t.Fatalf("tags leaked: %q", got)
	}
}

func TestExtractCollapsesWhitespace(t *testing.T) {
	in := "<p>a</p>\n\n\n\n<p>b</p>"
	got := Extract(in)
	if strings.Contains(got, "\n\n\n") {
		t.Fatalf("expected collapsed blank lines, got %q", got)
	}
}

func TestExtractUnterminatedScriptDropsRest(t *testing.T) {
	in := "<p>keep me</p><script>var x = 1;"
	got := Extract(in)
	if !strings.Contains(got, "keep me") {
		t.Fatalf("expected leading text preserved, got %q", got)
	}
	if strings.Contains(got, "var x") {
		t.Fatalf("unterminated script content leaked: %q", got)
	}
}
