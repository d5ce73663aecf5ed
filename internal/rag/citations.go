package rag

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"askdocs/internal/models"
)

var citationPattern = regexp.MustCompile(models.CitationRegex)

// ParseCitations finds [n] and [n, m] markers in text. Ranks within
// 1..evidenceCount are returned in cited, the rest in unknown. Both are
// ascending and free of duplicates.
func ParseCitations(text string, evidenceCount int) (cited, unknown []int) {
	seen := map[int]bool{}
	for _, m := range citationPattern.FindAllStringSubmatch(text, -1) {
		for _, part := range strings.Split(m[1], ",") {
			n, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil || seen[n] {
				continue
			}
			seen[n] = true
			if n >= 1 && n <= evidenceCount {
				cited = append(cited, n)
			} else {
				unknown = append(unknown, n)
			}
		}
	}
	sort.Ints(cited)
	sort.Ints(unknown)
	return cited, unknown
}
