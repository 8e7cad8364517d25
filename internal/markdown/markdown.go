// Package markdown turns a captured selection's HTML fragment into
// Markdown. The fragment comes straight from an arbitrary page, so it is
// sanitised before conversion.
package markdown

import (
	"fmt"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/microcosm-cc/bluemonday"
)

// Converter sanitises and converts selection fragments.
type Converter struct {
	policy *bluemonday.Policy
	conv   *converter.Converter
}

// New creates a Converter with the UGC sanitisation policy.
func New() *Converter {
	return &Converter{
		policy: bluemonday.UGCPolicy(),
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
			),
		),
	}
}

// Convert returns the Markdown rendering of fragment. pageURL resolves
// relative links inside the selection. Empty input yields empty output.
func (c *Converter) Convert(fragment, pageURL string) (string, error) {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return "", nil
	}

	clean := c.policy.Sanitize(fragment)
	md, err := c.conv.ConvertString(clean, converter.WithDomain(pageURL))
	if err != nil {
		return "", fmt.Errorf("markdown: convert: %w", err)
	}
	return strings.TrimSpace(md), nil
}
