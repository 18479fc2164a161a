package polymarket

import (
	"github.com/spf13/cast"

	"github.com/hupe1980/roma/core"
	"github.com/hupe1980/roma/tool"
)

// Descriptions maps tool names onto the text shown to models.
var Descriptions = map[string]string{
	"search_markets":             "Search for prediction markets by keyword or topic. Returns open markets with prices and volume.",
	"get_trending_markets":       "Get trending open markets sorted by 24h trading volume.",
	"get_liquid_markets":         "Get the most liquid open markets sorted by liquidity depth.",
	"get_markets_by_category":    "Get open markets of one category, such as politics, crypto or sports.",
	"get_market_details":         "Get detailed information about a specific market: prices, volume, liquidity, dates, outcomes and tags.",
	"get_user_positions":         "Get a wallet's positions with value and PnL.",
	"get_market_holders":         "Get the top holders of a market with position sizes and entry prices.",
	"get_recent_trades":          "Get the latest trades, optionally for one market and/or wallet.",
	"get_user_activity":          "Get a wallet's activity: trades, splits, merges, redemptions and rewards.",
	"get_onchain_market_trades":  "Get on-chain trades of a market from the Polymarket subgraph.",
	"get_onchain_user_positions": "Get on-chain positions of a wallet from the Polymarket subgraph.",
}

func schema(required []string, props map[string]any) map[string]any {
	s := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func prop(typ, desc string) map[string]any {
	return map[string]any{"type": typ, "description": desc}
}

var limitProp = prop("integer", "Maximum number of results (default 20, max 100)")

// Tools returns one tool per operation, filtered by the enabled, include and
// exclude settings.
func (t *Toolkit) Tools() []tool.Tool {
	all := []tool.Tool{
		t.newTool("search_markets", schema([]string{"query"}, map[string]any{
			"query": prop("string", "Search term, e.g. bitcoin, election, AI"),
			"limit": limitProp,
		}), func(tc *core.ToolContext, args map[string]any) (any, error) {
			return t.SearchMarkets(tc.Context(), cast.ToString(args["query"]), cast.ToInt(args["limit"])), nil
		}),
		t.newTool("get_trending_markets", schema(nil, map[string]any{"limit": limitProp}),
			func(tc *core.ToolContext, args map[string]any) (any, error) {
				return t.TrendingMarkets(tc.Context(), cast.ToInt(args["limit"])), nil
			}),
		t.newTool("get_liquid_markets", schema(nil, map[string]any{"limit": limitProp}),
			func(tc *core.ToolContext, args map[string]any) (any, error) {
				return t.LiquidMarkets(tc.Context(), cast.ToInt(args["limit"])), nil
			}),
		t.newTool("get_markets_by_category", schema([]string{"category"}, map[string]any{
			"category": prop("string", "Market category"),
			"limit":    limitProp,
		}), func(tc *core.ToolContext, args map[string]any) (any, error) {
			return t.MarketsByCategory(tc.Context(), cast.ToString(args["category"]), cast.ToInt(args["limit"])), nil
		}),
		t.newTool("get_market_details", schema([]string{"market_id"}, map[string]any{
			"market_id": prop("string", "Polymarket market id"),
		}), func(tc *core.ToolContext, args map[string]any) (any, error) {
			return t.MarketDetails(tc.Context(), cast.ToString(args["market_id"])), nil
		}),
		t.newTool("get_user_positions", schema([]string{"user_address"}, map[string]any{
			"user_address": prop("string", "Wallet address (0x...)"),
			"min_value":    prop("number", "Minimum position size to include (default 0)"),
		}), func(tc *core.ToolContext, args map[string]any) (any, error) {
			return t.UserPositions(tc.Context(), cast.ToString(args["user_address"]), cast.ToFloat64(args["min_value"])), nil
		}),
		t.newTool("get_market_holders", schema([]string{"market_id"}, map[string]any{
			"market_id": prop("string", "Polymarket market id"),
			"limit":     prop("integer", "Number of holders (default 50, max 100)"),
		}), func(tc *core.ToolContext, args map[string]any) (any, error) {
			return t.MarketHolders(tc.Context(), cast.ToString(args["market_id"]), cast.ToInt(args["limit"])), nil
		}),
		t.newTool("get_recent_trades", schema(nil, map[string]any{
			"market_id":    prop("string", "Restrict to one market"),
			"user_address": prop("string", "Restrict to one wallet"),
			"limit":        limitProp,
		}), func(tc *core.ToolContext, args map[string]any) (any, error) {
			return t.RecentTrades(tc.Context(), cast.ToString(args["market_id"]), cast.ToString(args["user_address"]), cast.ToInt(args["limit"])), nil
		}),
		t.newTool("get_user_activity", schema([]string{"user_address"}, map[string]any{
			"user_address":  prop("string", "Wallet address (0x...)"),
			"activity_type": prop("string", "TRADE, SPLIT, MERGE, REDEEM, REWARD or CONVERSION"),
			"limit":         limitProp,
		}), func(tc *core.ToolContext, args map[string]any) (any, error) {
			return t.UserActivity(tc.Context(), cast.ToString(args["user_address"]), cast.ToString(args["activity_type"]), cast.ToInt(args["limit"])), nil
		}),
		t.newTool("get_onchain_market_trades", schema([]string{"market_id"}, map[string]any{
			"market_id": prop("string", "Polymarket market id"),
			"limit":     limitProp,
		}), func(tc *core.ToolContext, args map[string]any) (any, error) {
			return t.OnchainMarketTrades(tc.Context(), cast.ToString(args["market_id"]), cast.ToInt(args["limit"])), nil
		}),
		t.newTool("get_onchain_user_positions", schema([]string{"user_address"}, map[string]any{
			"user_address": prop("string", "Wallet address (0x...)"),
			"limit":        limitProp,
		}), func(tc *core.ToolContext, args map[string]any) (any, error) {
			return t.OnchainUserPositions(tc.Context(), cast.ToString(args["user_address"]), cast.ToInt(args["limit"])), nil
		}),
	}
	return t.Filter(all)
}

func (t *Toolkit) newTool(name string, params map[string]any, fn func(*core.ToolContext, map[string]any) (any, error)) tool.Tool {
	return tool.NewFunctionTool(name, Descriptions[name], params, fn)
}
