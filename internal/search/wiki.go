package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"researchdesk/pkg/domain"
)

type wikiResponse struct {
	Query struct {
		Search []struct {
			Title   string `json:"title"`
			Snippet string `json:"snippet"`
		} `json:"search"`
	} `json:"query"`
}

// searchWiki calls the public MediaWiki search API and maps hits to article
// links with tag-stripped snippets.
func (d *Dispatcher) searchWiki(ctx context.Context, query string) ([]domain.SearchResult, error) {
	endpoint := d.wikiBaseURL + "/w/api.php?action=query&list=search&origin=*&utf8=1&format=json&srsearch=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("wiki search: %s", resp.Status)
	}
	var decoded wikiResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("wiki search: %w", err)
	}
	results := make([]domain.SearchResult, 0, len(decoded.Query.Search))
	for _, hit := range decoded.Query.Search {
		results = append(results, domain.SearchResult{
			Title:   hit.Title,
			URL:     d.wikiBaseURL + "/wiki/" + strings.ReplaceAll(hit.Title, " ", "_"),
			Content: stripHTML(hit.Snippet),
			Engine:  "Wikipedia",
		})
	}
	return results, nil
}

// stripHTML drops markup from a snippet, keeping only text content.
func stripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}
	var b strings.Builder
	tok := html.NewTokenizer(strings.NewReader(s))
	for {
		switch tok.Next() {
		case html.ErrorToken:
			return b.String()
		case html.TextToken:
			b.Write(tok.Text())
		}
	}
}
