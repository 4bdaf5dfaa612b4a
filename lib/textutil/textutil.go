package textutil

import (
	"regexp"
	"strings"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

func NormalizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.Trim(name, " \n\t")
	name = whitespaceRegex.ReplaceAllString(name, "")
	return name
}

func MatchName(name string, matchers []string) bool {
	name = NormalizeName(name)
	for _, m := range matchers {
		if strings.Contains(name, m) {
			return true
		}
	}
	return false
}

var nonSlugRegex = regexp.MustCompile(`[^\w\s-]`)
var slugSeparatorRegex = regexp.MustCompile(`[-\s]+`)

// Slugify converts a display name into a filesystem-safe slug:
// lowercase, punctuation stripped, runs of whitespace/hyphens
// collapsed to a single hyphen, capped at 80 characters.
func Slugify(name string) string {
	slug := nonSlugRegex.ReplaceAllString(strings.ToLower(name), "")
	slug = slugSeparatorRegex.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > 80 {
		slug = strings.TrimRight(slug[:80], "-")
	}
	return slug
}
