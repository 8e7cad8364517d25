package markdown

import (
	"strings"
	"testing"
)

func TestConvert_BasicFormatting(t *testing.T) {
	c := New()
	md, err := c.Convert("<p>Hello <strong>world</strong></p>", "https://example.com")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if !strings.Contains(md, "**world**") {
		t.Errorf("markdown: got %q, want bold world", md)
	}
}

func TestConvert_StripsScripts(t *testing.T) {
	c := New()
	md, err := c.Convert(`<p>safe</p><script>alert(1)</script>`, "https://example.com")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if strings.Contains(md, "alert") {
		t.Errorf("script content survived: %q", md)
	}
}

func TestConvert_Empty(t *testing.T) {
	c := New()
	md, err := c.Convert("   ", "https://example.com")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if md != "" {
		t.Errorf("got %q, want empty", md)
	}
}
