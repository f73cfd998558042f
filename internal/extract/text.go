package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/openlegaldata/oldp-ingestor/internal/model"
)

var (
	slugInvalid = regexp.MustCompile(`[^a-z0-9_-]`)
	slugDashes  = regexp.MustCompile(`-{2,}`)
)

// Slugify lowercases s and replaces everything but [a-z0-9_-] with dashes
func Slugify(s string) string {
	slug := slugInvalid.ReplaceAllString(strings.ToLower(s), "-")
	slug = slugDashes.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}

// Truncate shortens s to at most n runes
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

// HasContent reports whether extracted content reaches the minimum length
func HasContent(s string) bool {
	return utf8.RuneCountInString(s) >= model.MinContentLength
}

// Dedupe returns values without repeats in first-seen order
func Dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Submatches returns capture group idx of every match of re in s
func Submatches(re *regexp.Regexp, s string, idx int) []string {
	var out []string
	for _, m := range re.FindAllStringSubmatch(s, -1) {
		if idx < len(m) {
			out = append(out, m[idx])
		}
	}
	return out
}
