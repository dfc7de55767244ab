package processing

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	stripPolicy = bluemonday.StrictPolicy()
	whitespace  = regexp.MustCompile(`\s+`)
)

// StripTags removes all markup from a listing description so only plain text
// reaches the model prompt. Entities are decoded and whitespace squeezed.
func StripTags(input string) string {
	if input == "" {
		return ""
	}
	plain := stripPolicy.Sanitize(input)
	plain = html.UnescapeString(plain)
	plain = whitespace.ReplaceAllString(plain, " ")
	return strings.TrimSpace(plain)
}

// AbsoluteURL joins the marketplace base URL with a relative listing path.
// Already-absolute URLs pass through unchanged.
func AbsoluteURL(base, ref string) string {
	if ref == "" {
		return base
	}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	base = strings.TrimSuffix(base, "/")
	if !strings.HasPrefix(ref, "/") {
		ref = "/" + ref
	}
	return base + ref
}
