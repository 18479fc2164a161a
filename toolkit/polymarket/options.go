package polymarket

import (
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cast"
	"golang.org/x/time/rate"

	"github.com/hupe1980/roma/config"
	"github.com/hupe1980/roma/logging"
)

// Upstream endpoints.
const (
	DefaultGammaURL    = "https://gamma-api.polymarket.com"
	DefaultDataURL     = "https://data-api.polymarket.com"
	DefaultSubgraphURL = "https://gateway-arbitrum.network.thegraph.com/api/{api_key}/subgraphs/id/GH9qfCWevZu27LHmPcNNzhKGbMkJXZHBxo8e6jjSfQFj"
)

// GraphAPIKeyEnv is read when Options.GraphAPIKey is empty.
const GraphAPIKeyEnv = "GRAPH_API_KEY"

const (
	defaultLimit       = 20
	defaultHolderLimit = 50
	maxLimit           = 100
)

// Options configure a Toolkit.
type Options struct {
	// Timeout bounds each upstream request.
	Timeout time.Duration
	// CacheTTL is how long a successful result is served from the cache.
	// Zero or less disables caching.
	CacheTTL time.Duration
	// CacheSize bounds the number of cached results.
	CacheSize int
	// GraphAPIKey enables the subgraph client.
	GraphAPIKey string
	GammaURL    string
	DataURL     string
	// SubgraphURL may contain an {api_key} placeholder.
	SubgraphURL string
	// OverFetchFactor multiplies the upstream page size of filtered listings.
	// Values below 2 are raised to 2.
	OverFetchFactor int
	// RateLimit caps requests per second per client; zero means unlimited.
	RateLimit rate.Limit
	RateBurst int

	Enabled      bool
	IncludeTools []string
	ExcludeTools []string

	Logger logging.Logger
	// Registerer receives the toolkit metrics. Nil uses the default registerer.
	Registerer prometheus.Registerer
	// HTTPClient, when set, is shared by all clients instead of one
	// transport per client.
	HTTPClient *http.Client
	// Now returns the current time; tests pin it.
	Now func() time.Time
}

func defaultOptions() Options {
	return Options{
		Timeout:         30 * time.Second,
		CacheTTL:        300 * time.Second,
		CacheSize:       256,
		GammaURL:        DefaultGammaURL,
		DataURL:         DefaultDataURL,
		SubgraphURL:     DefaultSubgraphURL,
		OverFetchFactor: 2,
		RateLimit:       10,
		RateBurst:       5,
		Enabled:         true,
		Now:             time.Now,
	}
}

// WithToolkitConfig applies a configuration entry: enabled, include_tools,
// exclude_tools and the config keys timeout and cache_ttl (seconds or
// duration strings), cache_size, graph_api_key, over_fetch_factor and
// rate_limit.
func WithToolkitConfig(tc config.ToolkitConfig) func(o *Options) {
	return func(o *Options) {
		o.Enabled = tc.Enabled
		o.IncludeTools = tc.IncludeTools
		o.ExcludeTools = tc.ExcludeTools

		cfg := tc.Config
		if v, ok := cfg["timeout"]; ok {
			o.Timeout = seconds(v, o.Timeout)
		}
		if v, ok := cfg["cache_ttl"]; ok {
			o.CacheTTL = seconds(v, o.CacheTTL)
		}
		if v, ok := cfg["cache_size"]; ok {
			o.CacheSize = cast.ToInt(v)
		}
		if v, ok := cfg["graph_api_key"]; ok {
			o.GraphAPIKey = cast.ToString(v)
		}
		if v, ok := cfg["over_fetch_factor"]; ok {
			o.OverFetchFactor = cast.ToInt(v)
		}
		if v, ok := cfg["rate_limit"]; ok {
			o.RateLimit = rate.Limit(cast.ToFloat64(v))
		}
	}
}

// seconds reads a plain number as seconds and anything else as a duration.
func seconds(v any, fallback time.Duration) time.Duration {
	if n, err := cast.ToFloat64E(v); err == nil {
		return time.Duration(n * float64(time.Second))
	}
	if d, err := cast.ToDurationE(v); err == nil {
		return d
	}
	return fallback
}

func (o *Options) normalize() {
	if o.OverFetchFactor < 2 {
		o.OverFetchFactor = 2
	}
	if o.CacheSize <= 0 {
		o.CacheSize = 256
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.RateLimit <= 0 {
		o.RateLimit = rate.Inf
	}
	if o.RateBurst < 1 {
		o.RateBurst = 1
	}
	if o.GraphAPIKey == "" {
		o.GraphAPIKey = os.Getenv(GraphAPIKeyEnv)
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	o.Logger = logging.OrNoOp(o.Logger)
}

// clampLimit maps a requested limit onto [1, maxLimit], using def for
// non-positive values.
func clampLimit(n, def int) int {
	if n <= 0 {
		return def
	}
	if n > maxLimit {
		return maxLimit
	}
	return n
}
