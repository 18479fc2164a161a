package polymarket

import (
	"context"
	"net/url"
	"strconv"
)

// TradesQuery filters the trade feed.
type TradesQuery struct {
	User   string
	Market string
	// Side is BUY or SELL.
	Side  string
	Limit int
}

// ActivityQuery filters the activity feed.
type ActivityQuery struct {
	User   string
	Market string
	// Type is TRADE, SPLIT, MERGE, REDEEM, REWARD or CONVERSION.
	Type string
	// Start and End are unix seconds; zero leaves the bound open.
	Start int64
	End   int64
	Limit int
}

// DataClient reads positions, trades, activity and holders.
type DataClient struct {
	*httpClient
}

// Positions returns the holdings of user at or above sizeThreshold.
func (c *DataClient) Positions(ctx context.Context, user string, sizeThreshold float64, limit int) ([]map[string]any, error) {
	v := url.Values{}
	v.Set("user", user)
	v.Set("sizeThreshold", strconv.FormatFloat(sizeThreshold, 'f', -1, 64))
	v.Set("limit", strconv.Itoa(limit))
	return c.list(ctx, "/positions", v)
}

// Trades returns recent trades.
func (c *DataClient) Trades(ctx context.Context, q TradesQuery) ([]map[string]any, error) {
	v := url.Values{}
	v.Set("limit", strconv.Itoa(q.Limit))
	setIf(v, "user", q.User)
	setIf(v, "market", q.Market)
	setIf(v, "side", q.Side)
	return c.list(ctx, "/trades", v)
}

// Activity returns on-platform activity.
func (c *DataClient) Activity(ctx context.Context, q ActivityQuery) ([]map[string]any, error) {
	v := url.Values{}
	v.Set("limit", strconv.Itoa(q.Limit))
	setIf(v, "user", q.User)
	setIf(v, "market", q.Market)
	setIf(v, "type", q.Type)
	if q.Start > 0 {
		v.Set("start", strconv.FormatInt(q.Start, 10))
	}
	if q.End > 0 {
		v.Set("end", strconv.FormatInt(q.End, 10))
	}
	return c.list(ctx, "/activity", v)
}

// Holders returns the top holders of market. The payload may be grouped per
// outcome token; see flattenHolders.
func (c *DataClient) Holders(ctx context.Context, market, sortBy string, limit int) ([]map[string]any, error) {
	v := url.Values{}
	v.Set("market", market)
	v.Set("limit", strconv.Itoa(limit))
	setIf(v, "sortBy", sortBy)
	return c.list(ctx, "/holders", v)
}

func (c *DataClient) list(ctx context.Context, path string, v url.Values) ([]map[string]any, error) {
	var out []map[string]any
	if err := c.getJSON(ctx, path, v, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func setIf(v url.Values, key, val string) {
	if val != "" {
		v.Set(key, val)
	}
}
