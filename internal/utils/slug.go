package utils

import "strings"

// Slugify lowercases name, collapses every run of non-alphanumeric characters
// into a single hyphen and trims leading and trailing hyphens.
func Slugify(name string) string {
	var b strings.Builder
	pendingHyphen := false

	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}

	return b.String()
}
