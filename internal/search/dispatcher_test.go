package search

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"researchdesk/pkg/domain"
)

type fakeLocal struct {
	msgs []domain.Message
	err  error
}

func (f *fakeLocal) SearchMessages(query string, limit int) ([]domain.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.msgs) > limit {
		return f.msgs[:limit], nil
	}
	return f.msgs, nil
}

type fakeProxy struct {
	mu        sync.Mutex
	reachable bool
	results   []domain.SearchResult
	err       error
	called    bool
	gotQuery  string
	gotIDs    []int64
}

func (f *fakeProxy) Reachable() bool { return f.reachable }

func (f *fakeProxy) Search(_ context.Context, query string, providerIDs []int64) ([]domain.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.called = true
	f.gotQuery = query
	f.gotIDs = providerIDs
	return f.results, f.err
}

type noNetworkTransport struct{ t *testing.T }

func (n noNetworkTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	n.t.Errorf("unexpected network call to %s", r.URL)
	return nil, errors.New("network disabled")
}

func genericProvider(id int64, name, apiURL string) domain.SearchProvider {
	return domain.SearchProvider{
		ID: id, Name: name, Type: domain.ProviderGeneric,
		APIURL: apiURL, ResultPath: "items",
		TitlePath: "title", URLPath: "link", ContentPath: "body",
		IsEnabled: true,
	}
}

func TestSearchNoProvidersMakesNoNetworkCalls(t *testing.T) {
	d := New(Config{HTTPClient: &http.Client{Transport: noNetworkTransport{t}}})
	results := d.Search(context.Background(), "anything", nil)
	if results == nil {
		t.Fatal("expected empty slice, got nil")
	}
	if len(results) != 0 {
		t.Fatalf("expected no results, got %d", len(results))
	}
}

func TestSearchLocalDBMapsMessages(t *testing.T) {
	long := strings.Repeat("x", 200)
	created := time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC)
	local := &fakeLocal{msgs: []domain.Message{
		{Content: long, CreatedAt: created},
		{Content: "short", CreatedAt: created.Add(-time.Hour)},
	}}
	d := New(Config{Local: local, HTTPClient: &http.Client{Transport: noNetworkTransport{t}}})

	results := d.Search(context.Background(), "x", []domain.SearchProvider{
		{ID: 1, Name: "Local Database", Type: domain.ProviderNative, APIURL: domain.SentinelLocalDB, IsEnabled: true},
	})
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	first := results[0]
	if first.Engine != "LocalDB" {
		t.Fatalf("engine = %q, want LocalDB", first.Engine)
	}
	if first.URL != "#" {
		t.Fatalf("url = %q, want #", first.URL)
	}
	if !strings.HasPrefix(first.Title, "Local Chat: ") {
		t.Fatalf("unexpected title %q", first.Title)
	}
	if want := strings.Repeat("x", 150) + "..."; first.Content != want {
		t.Fatalf("long content not truncated to 150 runes: got %d chars", len(first.Content))
	}
	if results[1].Content != "short..." {
		t.Fatalf("short content = %q, want short...", results[1].Content)
	}
}

func TestSearchGenericSubstitutesQueryAndDropsURLlessItems(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.RequestURI()
		if got := r.Header.Get("X-Api-Key"); got != "sekret" {
			t.Errorf("X-Api-Key = %q, want sekret", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items":[
			{"title":"Real Hit","link":"https://example.com/a","body":"about go"},
			{"title":"No URL Here"},
			{"link":"https://example.com/b"}
		]}`))
	}))
	defer srv.Close()

	p := genericProvider(4, "My API", srv.URL+"/search?q={q}")
	p.APIHeaders = `{"X-Api-Key":"sekret"}`
	d := New(Config{})

	results := d.Search(context.Background(), "go tooling", []domain.SearchProvider{p})
	if gotPath != "/search?q=go+tooling" {
		t.Fatalf("request path = %q, want /search?q=go+tooling", gotPath)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results (url-less item dropped), got %d", len(results))
	}
	if results[0].Title != "Real Hit" || results[0].URL != "https://example.com/a" || results[0].Content != "about go" {
		t.Fatalf("unexpected first result %+v", results[0])
	}
	if results[0].Engine != "My API" {
		t.Fatalf("engine = %q, want My API", results[0].Engine)
	}
	// Missing title falls back, missing content stays empty.
	if results[1].Title != "Result" || results[1].Content != "" {
		t.Fatalf("unexpected fallback result %+v", results[1])
	}
}

func TestSearchGenericRootArrayBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`[{"show":{"name":"Example","url":"https://tv.example/1","summary":"a show"}}]`))
	}))
	defer srv.Close()

	p := domain.SearchProvider{
		ID: 5, Name: "TVMaze", Type: domain.ProviderGeneric,
		APIURL:    srv.URL + "/shows?q={q}",
		TitlePath: "show.name", URLPath: "show.url", ContentPath: "show.summary",
		IsEnabled: true,
	}
	d := New(Config{})
	results := d.Search(context.Background(), "example", []domain.SearchProvider{p})
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Title != "Example" || results[0].URL != "https://tv.example/1" {
		t.Fatalf("unexpected result %+v", results[0])
	}
}

func TestSearchFailingProviderIsIsolated(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer bad.Close()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"items":[{"title":"ok","link":"https://example.com","body":""}]}`))
	}))
	defer good.Close()

	d := New(Config{})
	results := d.Search(context.Background(), "q", []domain.SearchProvider{
		genericProvider(1, "Broken", bad.URL+"/?q={q}"),
		genericProvider(2, "Working", good.URL+"/?q={q}"),
	})
	if len(results) != 1 {
		t.Fatalf("expected only the working provider's result, got %d", len(results))
	}
	if results[0].Engine != "Working" {
		t.Fatalf("engine = %q, want Working", results[0].Engine)
	}
}

func TestSearchMergesInProviderOrderWithProxyLast(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(40 * time.Millisecond)
		w.Write([]byte(`{"items":[{"title":"slow","link":"https://example.com/slow","body":""}]}`))
	}))
	defer slow.Close()
	fast := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"items":[{"title":"fast","link":"https://example.com/fast","body":""}]}`))
	}))
	defer fast.Close()

	proxy := &fakeProxy{reachable: true, results: []domain.SearchResult{
		{Title: "relayed", URL: "https://ddg.example", Engine: "DuckDuckGo"},
	}}
	d := New(Config{Proxy: proxy})

	providers := []domain.SearchProvider{
		genericProvider(1, "Slow", slow.URL+"/?q={q}"),
		genericProvider(2, "Fast", fast.URL+"/?q={q}"),
		{ID: 3, Name: "DuckDuckGo", Type: domain.ProviderNative, APIURL: domain.SentinelDDG, IsEnabled: true},
	}
	results := d.Search(context.Background(), "ordering", providers)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Engine != "Slow" || results[1].Engine != "Fast" || results[2].Engine != "DuckDuckGo" {
		t.Fatalf("unexpected merge order: %s, %s, %s", results[0].Engine, results[1].Engine, results[2].Engine)
	}
	if proxy.gotQuery != "ordering" {
		t.Fatalf("proxy query = %q, want ordering", proxy.gotQuery)
	}
	if len(proxy.gotIDs) != 1 || proxy.gotIDs[0] != 3 {
		t.Fatalf("proxy ids = %v, want [3]", proxy.gotIDs)
	}
}

func TestSearchSkipsProxyWhenUnreachable(t *testing.T) {
	proxy := &fakeProxy{reachable: false}
	local := &fakeLocal{msgs: []domain.Message{{Content: "hit", CreatedAt: time.Now()}}}
	d := New(Config{Local: local, Proxy: proxy, HTTPClient: &http.Client{Transport: noNetworkTransport{t}}})

	results := d.Search(context.Background(), "hit", []domain.SearchProvider{
		{ID: 1, Name: "Local Database", Type: domain.ProviderNative, APIURL: domain.SentinelLocalDB, IsEnabled: true},
		{ID: 2, Name: "DuckDuckGo", Type: domain.ProviderNative, APIURL: domain.SentinelDDG, IsEnabled: true},
	})
	if proxy.called {
		t.Fatal("proxy must not be called when unreachable")
	}
	if len(results) != 1 || results[0].Engine != "LocalDB" {
		t.Fatalf("expected only the local result, got %+v", results)
	}
}

func TestSearchProxyFailureContributesZeroResults(t *testing.T) {
	proxy := &fakeProxy{reachable: true, err: errors.New("sidecar exploded")}
	local := &fakeLocal{msgs: []domain.Message{{Content: "hit", CreatedAt: time.Now()}}}
	d := New(Config{Local: local, Proxy: proxy, HTTPClient: &http.Client{Transport: noNetworkTransport{t}}})

	results := d.Search(context.Background(), "hit", []domain.SearchProvider{
		{ID: 1, Name: "Local Database", Type: domain.ProviderNative, APIURL: domain.SentinelLocalDB, IsEnabled: true},
		{ID: 2, Name: "Reddit", Type: domain.ProviderNative, APIURL: domain.SentinelReddit, IsEnabled: true},
	})
	if !proxy.called {
		t.Fatal("expected proxy attempt")
	}
	if len(results) != 1 || results[0].Engine != "LocalDB" {
		t.Fatalf("expected the local result to survive, got %+v", results)
	}
}

func TestSearchWikiStripsMarkup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/w/api.php" {
			http.NotFound(w, r)
			return
		}
		if got := r.URL.Query().Get("srsearch"); got != "go language" {
			t.Errorf("srsearch = %q, want %q", got, "go language")
		}
		w.Write([]byte(`{"query":{"search":[
			{"title":"Go (programming language)","snippet":"<span class=\"searchmatch\">Go</span> is a language &amp; toolchain"}
		]}}`))
	}))
	defer srv.Close()

	d := New(Config{WikiBaseURL: srv.URL})
	results := d.Search(context.Background(), "go language", []domain.SearchProvider{
		{ID: 2, Name: "Wikipedia", Type: domain.ProviderNative, APIURL: domain.SentinelWiki, IsEnabled: true},
	})
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	got := results[0]
	if got.Engine != "Wikipedia" {
		t.Fatalf("engine = %q", got.Engine)
	}
	if got.Content != "Go is a language & toolchain" {
		t.Fatalf("snippet not stripped: %q", got.Content)
	}
	if want := srv.URL + "/wiki/Go_(programming_language)"; got.URL != want {
		t.Fatalf("url = %q, want %q", got.URL, want)
	}
}
