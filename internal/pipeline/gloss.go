package pipeline

import "strings"

// Gloss helpers for the hearing-to-deaf direction: mediated text is carried
// as an ordered sequence of uppercase gloss tokens, the unit the avatar
// animation layer consumes.

func tokenizeGlosses(mediatedText string) []string {
	fields := strings.Fields(mediatedText)
	glosses := make([]string, 0, len(fields))
	for _, f := range fields {
		token := strings.ToUpper(strings.Trim(f, ".,!?;:\"'"))
		if token != "" {
			glosses = append(glosses, token)
		}
	}
	return glosses
}

func joinGlosses(glosses []string) string {
	return strings.Join(glosses, " ")
}
