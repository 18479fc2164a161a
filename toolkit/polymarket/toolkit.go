package polymarket

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/hupe1980/roma/config"
	"github.com/hupe1980/roma/logging"
	"github.com/hupe1980/roma/toolkit"
)

// Class is the toolkit class name used in configuration.
const Class = "PolymarketToolkit"

// Toolkit serves Polymarket operations. It is safe for concurrent use.
type Toolkit struct {
	toolkit.Base

	opts    Options
	logger  logging.Logger
	metrics *Metrics
	cache   *resultCache
	closed  atomic.Bool

	gamma    *lazySlot[*GammaClient]
	data     *lazySlot[*DataClient]
	subgraph *lazySlot[*SubgraphClient]
}

// New creates a toolkit. No client is created until an operation needs it.
func New(optFns ...func(o *Options)) *Toolkit {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.normalize()

	metrics := defaultMetrics()
	if opts.Registerer != nil {
		metrics = NewMetrics(opts.Registerer)
	}

	t := &Toolkit{
		Base:    toolkit.NewBase(opts.Enabled, opts.IncludeTools, opts.ExcludeTools),
		opts:    opts,
		logger:  opts.Logger,
		metrics: metrics,
		cache:   newResultCache(opts.CacheSize, opts.CacheTTL, opts.Now, metrics),
	}

	t.gamma = newLazySlot(func() (*GammaClient, error) {
		t.logger.Debug("polymarket.client.created", "client", "gamma")
		return &GammaClient{newHTTPClient("gamma", opts.GammaURL, opts, metrics)}, nil
	})
	t.data = newLazySlot(func() (*DataClient, error) {
		t.logger.Debug("polymarket.client.created", "client", "data")
		return &DataClient{newHTTPClient("data", opts.DataURL, opts, metrics)}, nil
	})
	t.subgraph = newLazySlot(func() (*SubgraphClient, error) {
		if opts.GraphAPIKey == "" {
			return nil, ErrNoGraphKey
		}
		t.logger.Debug("polymarket.client.created", "client", "subgraph")
		return &SubgraphClient{newHTTPClient("subgraph", subgraphURL(opts.SubgraphURL, opts.GraphAPIKey), opts, metrics)}, nil
	})

	t.logger.Info("polymarket.toolkit.initialized", "timeout", opts.Timeout, "cache_ttl", opts.CacheTTL, "subgraph", opts.GraphAPIKey != "")

	return t
}

// Factory builds a toolkit from a configuration entry.
func Factory(cfg config.ToolkitConfig, logger logging.Logger) (toolkit.Toolkit, error) {
	return New(WithToolkitConfig(cfg), func(o *Options) { o.Logger = logger }), nil
}

// Name implements toolkit.Toolkit.
func (t *Toolkit) Name() string { return Class }

// Close releases every active client. Operations fail with ErrClosed
// afterwards.
func (t *Toolkit) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	t.gamma.close(func(c *GammaClient) { c.close() })
	t.data.close(func(c *DataClient) { c.close() })
	t.subgraph.close(func(c *SubgraphClient) { c.close() })
	t.logger.Info("polymarket.toolkit.closed")
	return nil
}

// fetchSize is the upstream page size for a filtered listing of limit items.
func (t *Toolkit) fetchSize(limit int) int {
	return limit * t.opts.OverFetchFactor
}

// run serves op through the cache. Faults are logged and returned for the
// caller to shape into a failure result.
func run[T any](ctx context.Context, t *Toolkit, op string, args map[string]any, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if t.closed.Load() {
		return zero, ErrClosed
	}
	v, err := t.cache.do(ctx, cacheKey(op, args), func(ctx context.Context) (any, error) { return fn(ctx) })
	if err != nil {
		t.logger.Error("polymarket.operation.failed", "op", op, "error", err.Error())
		return zero, err
	}
	res, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("polymarket: cached %s result has type %T", op, v)
	}
	return res, nil
}

// listing caches the raw upstream page and filters it on every read, so a
// market that ends while its page is cached is still dropped.
func (t *Toolkit) listing(ctx context.Context, op, query string, limit int, q MarketsQuery) MarketSearchResult {
	limit = clampLimit(limit, defaultLimit)
	q.Limit = t.fetchSize(limit)

	raw, err := run(ctx, t, op, map[string]any{"query": query, "limit": limit}, func(ctx context.Context) ([]map[string]any, error) {
		gamma, err := t.gamma.get()
		if err != nil {
			return nil, err
		}
		return gamma.Markets(ctx, q)
	})
	if err != nil {
		return MarketSearchResult{Query: query, Markets: []Market{}, Error: err.Error()}
	}
	markets := mapAll(filterActive(raw, t.opts.Now(), t.logger), limit, toMarket)
	return MarketSearchResult{Success: true, Query: query, Count: len(markets), Markets: markets}
}

// SearchMarkets finds open markets matching query.
func (t *Toolkit) SearchMarkets(ctx context.Context, query string, limit int) MarketSearchResult {
	if query == "" {
		return MarketSearchResult{Markets: []Market{}, Error: "query is required"}
	}
	return t.listing(ctx, "search_markets", query, limit, MarketsQuery{Search: query, OrderBy: "volume_24h"})
}

// TrendingMarkets returns open markets ranked by 24h volume.
func (t *Toolkit) TrendingMarkets(ctx context.Context, limit int) MarketSearchResult {
	return t.listing(ctx, "get_trending_markets", "trending", limit, MarketsQuery{OrderBy: "volume_24h"})
}

// LiquidMarkets returns open markets ranked by liquidity.
func (t *Toolkit) LiquidMarkets(ctx context.Context, limit int) MarketSearchResult {
	return t.listing(ctx, "get_liquid_markets", "liquidity_leaders", limit, MarketsQuery{OrderBy: "liquidity"})
}

// MarketsByCategory returns open markets of one category.
func (t *Toolkit) MarketsByCategory(ctx context.Context, category string, limit int) MarketSearchResult {
	if category == "" {
		return MarketSearchResult{Markets: []Market{}, Error: "category is required"}
	}
	return t.listing(ctx, "get_markets_by_category", category, limit, MarketsQuery{Category: category, OrderBy: "volume_24h"})
}

// MarketDetails looks up one market. Ended markets are returned as is.
func (t *Toolkit) MarketDetails(ctx context.Context, marketID string) MarketDetails {
	if marketID == "" {
		return MarketDetails{Error: "market_id is required"}
	}
	res, err := run(ctx, t, "get_market_details", map[string]any{"market_id": marketID}, func(ctx context.Context) (MarketDetails, error) {
		gamma, err := t.gamma.get()
		if err != nil {
			return MarketDetails{}, err
		}
		raw, err := gamma.Market(ctx, marketID)
		if err != nil {
			return MarketDetails{}, err
		}
		m := toMarket(raw)
		id := m.ID
		if id == "" {
			id = marketID
		}
		return MarketDetails{Success: true, MarketID: id, Market: &m}, nil
	})
	if err != nil {
		return MarketDetails{MarketID: marketID, Error: err.Error()}
	}
	return res
}

// UserPositions returns the holdings of a wallet worth at least minValue.
func (t *Toolkit) UserPositions(ctx context.Context, address string, minValue float64) UserPositionsResult {
	if address == "" {
		return UserPositionsResult{Positions: []Position{}, Error: "user_address is required"}
	}
	res, err := run(ctx, t, "get_user_positions", map[string]any{"user": address, "min_value": minValue}, func(ctx context.Context) (UserPositionsResult, error) {
		data, err := t.data.get()
		if err != nil {
			return UserPositionsResult{}, err
		}
		raw, err := data.Positions(ctx, address, minValue, 1000)
		if err != nil {
			return UserPositionsResult{}, err
		}
		positions := mapAll(raw, 0, toPosition)
		total := 0.0
		for _, p := range positions {
			total += p.Value
		}
		return UserPositionsResult{Success: true, UserAddress: address, Count: len(positions), TotalValue: total, Positions: positions}, nil
	})
	if err != nil {
		return UserPositionsResult{UserAddress: address, Positions: []Position{}, Error: err.Error()}
	}
	return res
}

// MarketHolders returns the top holders of a market across its outcomes.
func (t *Toolkit) MarketHolders(ctx context.Context, marketID string, limit int) MarketHoldersResult {
	if marketID == "" {
		return MarketHoldersResult{Holders: []Holder{}, Error: "market_id is required"}
	}
	limit = clampLimit(limit, defaultHolderLimit)
	res, err := run(ctx, t, "get_market_holders", map[string]any{"market_id": marketID, "limit": limit}, func(ctx context.Context) (MarketHoldersResult, error) {
		data, err := t.data.get()
		if err != nil {
			return MarketHoldersResult{}, err
		}
		raw, err := data.Holders(ctx, marketID, "size", limit)
		if err != nil {
			return MarketHoldersResult{}, err
		}
		holders := mapAll(flattenHolders(raw), limit, toHolder)
		return MarketHoldersResult{Success: true, MarketID: marketID, Count: len(holders), Holders: holders}, nil
	})
	if err != nil {
		return MarketHoldersResult{MarketID: marketID, Holders: []Holder{}, Error: err.Error()}
	}
	return res
}

// RecentTrades returns the latest trades, optionally narrowed to a market
// and/or a wallet.
func (t *Toolkit) RecentTrades(ctx context.Context, marketID, user string, limit int) TradesResult {
	limit = clampLimit(limit, defaultLimit)
	query := marketID
	if query == "" {
		query = user
	}
	res, err := run(ctx, t, "get_recent_trades", map[string]any{"market": marketID, "user": user, "limit": limit}, func(ctx context.Context) (TradesResult, error) {
		data, err := t.data.get()
		if err != nil {
			return TradesResult{}, err
		}
		raw, err := data.Trades(ctx, TradesQuery{Market: marketID, User: user, Limit: limit})
		if err != nil {
			return TradesResult{}, err
		}
		trades := mapAll(raw, limit, toTrade)
		return TradesResult{Success: true, Query: query, Count: len(trades), Trades: trades}, nil
	})
	if err != nil {
		return TradesResult{Query: query, Trades: []Trade{}, Error: err.Error()}
	}
	return res
}

// UserActivity returns the account events of a wallet, optionally of one
// type.
func (t *Toolkit) UserActivity(ctx context.Context, address, activityType string, limit int) ActivityResult {
	if address == "" {
		return ActivityResult{Activities: []Activity{}, Error: "user_address is required"}
	}
	limit = clampLimit(limit, defaultLimit)
	res, err := run(ctx, t, "get_user_activity", map[string]any{"user": address, "type": activityType, "limit": limit}, func(ctx context.Context) (ActivityResult, error) {
		data, err := t.data.get()
		if err != nil {
			return ActivityResult{}, err
		}
		raw, err := data.Activity(ctx, ActivityQuery{User: address, Type: activityType, Limit: limit})
		if err != nil {
			return ActivityResult{}, err
		}
		acts := mapAll(raw, limit, toActivity)
		return ActivityResult{Success: true, UserAddress: address, Count: len(acts), Activities: acts}, nil
	})
	if err != nil {
		return ActivityResult{UserAddress: address, Activities: []Activity{}, Error: err.Error()}
	}
	return res
}

// OnchainMarketTrades returns a market's trades as indexed on-chain.
func (t *Toolkit) OnchainMarketTrades(ctx context.Context, marketID string, limit int) TradesResult {
	if marketID == "" {
		return TradesResult{Trades: []Trade{}, Error: "market_id is required"}
	}
	limit = clampLimit(limit, defaultLimit)
	res, err := run(ctx, t, "get_onchain_market_trades", map[string]any{"market_id": marketID, "limit": limit}, func(ctx context.Context) (TradesResult, error) {
		sg, err := t.subgraph.get()
		if err != nil {
			return TradesResult{}, err
		}
		raw, err := sg.MarketTrades(ctx, marketID, limit)
		if err != nil {
			return TradesResult{}, err
		}
		trades := mapAll(raw, limit, toTrade)
		return TradesResult{Success: true, Query: marketID, Count: len(trades), Trades: trades}, nil
	})
	if err != nil {
		return TradesResult{Query: marketID, Trades: []Trade{}, Error: err.Error()}
	}
	return res
}

// OnchainUserPositions returns a wallet's positions as indexed on-chain.
func (t *Toolkit) OnchainUserPositions(ctx context.Context, address string, limit int) OnchainPositionsResult {
	if address == "" {
		return OnchainPositionsResult{Positions: []OnchainPosition{}, Error: "user_address is required"}
	}
	limit = clampLimit(limit, defaultLimit)
	res, err := run(ctx, t, "get_onchain_user_positions", map[string]any{"user": address, "limit": limit}, func(ctx context.Context) (OnchainPositionsResult, error) {
		sg, err := t.subgraph.get()
		if err != nil {
			return OnchainPositionsResult{}, err
		}
		raw, err := sg.UserPositions(ctx, address, limit)
		if err != nil {
			return OnchainPositionsResult{}, err
		}
		positions := mapAll(raw, limit, toOnchainPosition)
		return OnchainPositionsResult{Success: true, UserAddress: address, Count: len(positions), Positions: positions}, nil
	})
	if err != nil {
		return OnchainPositionsResult{UserAddress: address, Positions: []OnchainPosition{}, Error: err.Error()}
	}
	return res
}
