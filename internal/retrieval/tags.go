package retrieval

import "regexp"

// Component tags open with the modus prefix family, e.g. <modus-alert> or
// <modus-wc-alert>. The capture stops before attributes or the closing
// bracket.
var tagPattern = regexp.MustCompile(`<(modus(?:-wc)?-[a-z][a-z0-9-]*)`)

// ExtractTags returns the distinct component tags in a code snippet,
// first occurrence order preserved.
func ExtractTags(code string) []string {
	matches := tagPattern.FindAllStringSubmatch(code, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(matches))
	var tags []string
	for _, m := range matches {
		tag := m[1]
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	return tags
}

// NormalizeV1Key converts a tag to the filename the component mapping is
// keyed by.
func NormalizeV1Key(tag string) string {
	return tag + ".tsx"
}
