// Package sortname generates bibliographic sort titles following
// ALA/Library of Congress conventions.
package sortname

import (
	"strings"
)

// TitleArticles are articles to strip from the beginning of titles.
// These are moved to the end (e.g., "The Hobbit" -> "Hobbit, The").
var TitleArticles = []string{
	"The",
	"A",
	"An",
}

// ForTitle generates a sort title from a display title.
// Leading articles are moved to the end.
// Examples:
//   - "The Hobbit" -> "Hobbit, The"
//   - "A Tale of Two Cities" -> "Tale of Two Cities, A"
//   - "An American Tragedy" -> "American Tragedy, An"
//   - "Lord of the Rings" -> "Lord of the Rings" (no change)
func ForTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return ""
	}

	for _, article := range TitleArticles {
		prefix := article + " "
		if strings.EqualFold(title[:min(len(prefix), len(title))], prefix) && len(title) > len(prefix) {
			// Extract the actual article from the title (preserving original case)
			actualArticle := title[:len(article)]
			rest := strings.TrimSpace(title[len(prefix):])
			if rest != "" {
				return rest + ", " + actualArticle
			}
		}
	}

	return title
}
