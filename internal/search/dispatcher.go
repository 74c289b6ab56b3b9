package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"researchdesk/pkg/domain"
)

const (
	defaultProviderTimeout = 5 * time.Second
	defaultConcurrency     = 4
	defaultWikiBaseURL     = "https://en.wikipedia.org"
)

// LocalSearcher is the slice of the persistent store the local-computed
// provider needs.
type LocalSearcher interface {
	SearchMessages(query string, limit int) ([]domain.Message, error)
}

// ProxySearcher relays queries for providers the service cannot fetch
// directly. Reachable reflects the last health probe.
type ProxySearcher interface {
	Reachable() bool
	Search(ctx context.Context, query string, providerIDs []int64) ([]domain.SearchResult, error)
}

// Dispatcher fans a query out to every enabled provider and merges the
// results. A failing provider contributes zero results and never aborts the
// rest of the search.
type Dispatcher struct {
	local       LocalSearcher
	proxy       ProxySearcher
	client      *http.Client
	wikiBaseURL string
	timeout     time.Duration
	concurrency int
}

// Config wires dispatcher dependencies. Zero values get usable defaults.
type Config struct {
	Local           LocalSearcher
	Proxy           ProxySearcher
	HTTPClient      *http.Client
	WikiBaseURL     string
	ProviderTimeout time.Duration
	Concurrency     int
}

// New constructs a dispatcher.
func New(cfg Config) *Dispatcher {
	d := &Dispatcher{
		local:       cfg.Local,
		proxy:       cfg.Proxy,
		client:      cfg.HTTPClient,
		wikiBaseURL: strings.TrimRight(cfg.WikiBaseURL, "/"),
		timeout:     cfg.ProviderTimeout,
		concurrency: cfg.Concurrency,
	}
	if d.client == nil {
		d.client = &http.Client{}
	}
	if d.wikiBaseURL == "" {
		d.wikiBaseURL = defaultWikiBaseURL
	}
	if d.timeout <= 0 {
		d.timeout = defaultProviderTimeout
	}
	if d.concurrency <= 0 {
		d.concurrency = defaultConcurrency
	}
	return d
}

// Sentinels whose sources are CORS-restricted or scrape-based and must be
// relayed through the sidecar. Matched by case-sensitive prefix.
var proxySentinels = []string{
	domain.SentinelDDG,
	domain.SentinelReddit,
	domain.SentinelQwant,
	domain.SentinelMojeek,
}

func isProxyRelayed(p domain.SearchProvider) bool {
	for _, sentinel := range proxySentinels {
		if strings.HasPrefix(p.APIURL, sentinel) {
			return true
		}
	}
	return false
}

// Search runs one query against the given providers. In-process providers
// run concurrently but merge in provider-list order; sidecar results are
// appended last. With no providers it returns an empty slice without any
// network traffic.
func (d *Dispatcher) Search(ctx context.Context, query string, providers []domain.SearchProvider) []domain.SearchResult {
	var inProcess, proxied []domain.SearchProvider
	for _, p := range providers {
		if isProxyRelayed(p) {
			proxied = append(proxied, p)
		} else {
			inProcess = append(inProcess, p)
		}
	}

	slots := make([][]domain.SearchResult, len(inProcess))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)
	for i, p := range inProcess {
		i, p := i, p
		g.Go(func() error {
			hits, err := d.searchProvider(gctx, query, p)
			if err != nil {
				slog.Warn("provider search failed", "provider", p.Name, "err", err)
				return nil
			}
			slots[i] = hits
			return nil
		})
	}
	_ = g.Wait()

	results := []domain.SearchResult{}
	for _, hits := range slots {
		results = append(results, hits...)
	}

	if len(proxied) > 0 && d.proxy != nil && d.proxy.Reachable() {
		ids := make([]int64, 0, len(proxied))
		for _, p := range proxied {
			ids = append(ids, p.ID)
		}
		hits, err := d.proxy.Search(ctx, query, ids)
		if err != nil {
			slog.Warn("sidecar search failed", "err", err)
		} else {
			results = append(results, hits...)
		}
	}
	return results
}

func (d *Dispatcher) searchProvider(ctx context.Context, query string, p domain.SearchProvider) ([]domain.SearchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	switch {
	case p.APIURL == domain.SentinelLocalDB:
		return d.searchLocal(query)
	case p.APIURL == domain.SentinelWiki:
		return d.searchWiki(ctx, query)
	case p.Type == domain.ProviderGeneric:
		return d.searchGeneric(ctx, query, p)
	default:
		return nil, fmt.Errorf("unknown native provider %q", p.APIURL)
	}
}

var errNoLocalStore = errors.New("local search not configured")
