package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"researchdesk/pkg/domain"
)

// searchGeneric fetches a user-configured JSON API and maps items through
// the provider's dotted extraction paths. Items without a real url are
// dropped: "#" is the placeholder for a failed url extraction and such hits
// are unusable.
func (d *Dispatcher) searchGeneric(ctx context.Context, query string, p domain.SearchProvider) ([]domain.SearchResult, error) {
	endpoint := strings.ReplaceAll(p.APIURL, "{q}", url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if p.APIHeaders != "" {
		var headers map[string]string
		if err := json.Unmarshal([]byte(p.APIHeaders), &headers); err != nil {
			return nil, fmt.Errorf("parse api_headers: %w", err)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("provider %s: %s", p.Name, resp.Status)
	}
	var body any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("provider %s: %w", p.Name, err)
	}

	// An empty result_path means the body itself is the item list.
	items, ok := Extract(body, p.ResultPath).([]any)
	if !ok {
		return nil, nil
	}
	var results []domain.SearchResult
	for _, item := range items {
		link := stringValue(Extract(item, p.URLPath))
		if link == "" || link == "#" {
			continue
		}
		title := stringValue(Extract(item, p.TitlePath))
		if title == "" {
			title = "Result"
		}
		results = append(results, domain.SearchResult{
			Title:   title,
			URL:     link,
			Content: stringValue(Extract(item, p.ContentPath)),
			Engine:  p.Name,
		})
	}
	return results, nil
}
