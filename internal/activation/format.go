package activation

import (
	"regexp"
	"strings"
)

// numericSuffix splits a trailing digit run and its separator off a name.
var numericSuffix = regexp.MustCompile(`^(.*?)[\s_-]*(\d+)$`)

var legacySpelling = regexp.MustCompile(`\b([Ee])dicion\b`)

// FormatCategoryName returns the display form of a stored category name: a 10 to 13
// digit timestamp suffix is dropped and the legacy "Edicion" spelling is corrected.
// The stored name is never changed.
func FormatCategoryName(name string) string {
	name = strings.TrimSpace(name)
	if m := numericSuffix.FindStringSubmatch(name); m != nil {
		if digits := len(m[2]); digits >= 10 && digits <= 13 && strings.TrimSpace(m[1]) != "" {
			name = strings.TrimSpace(m[1])
		}
	}
	name = legacySpelling.ReplaceAllString(name, "${1}dición")
	return strings.ReplaceAll(name, "EDICION", "EDICIÓN")
}
