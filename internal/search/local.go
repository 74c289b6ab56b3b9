package search

import (
	"time"

	"researchdesk/internal/store"
	"researchdesk/pkg/domain"
)

const localSnippetRunes = 150

// searchLocal queries the persistent store's message search. Hits carry a
// synthesized title and a "#" url since there is nothing to link to.
func (d *Dispatcher) searchLocal(query string) ([]domain.SearchResult, error) {
	if d.local == nil {
		return nil, errNoLocalStore
	}
	msgs, err := d.local.SearchMessages(query, store.MaxLocalSearchResults)
	if err != nil {
		return nil, err
	}
	results := make([]domain.SearchResult, 0, len(msgs))
	for _, m := range msgs {
		results = append(results, domain.SearchResult{
			Title:   "Local Chat: " + m.CreatedAt.Format(time.DateTime),
			URL:     "#",
			Content: snippet(m.Content, localSnippetRunes),
			Engine:  "LocalDB",
		})
	}
	return results, nil
}

// snippet cuts content to limit runes and marks the cut with an ellipsis.
func snippet(s string, limit int) string {
	r := []rune(s)
	if len(r) > limit {
		r = r[:limit]
	}
	return string(r) + "..."
}
