package polymarket

import (
	"context"
	"net/url"
	"strconv"
)

// MarketsQuery selects a page of the Gamma market catalog.
type MarketsQuery struct {
	Limit    int
	Offset   int
	Search   string
	Category string
	// OrderBy is volume_24h, liquidity or end_date_iso.
	OrderBy string
	// Ascending flips the default descending order.
	Ascending bool
	Closed    bool
}

func (q MarketsQuery) values() url.Values {
	v := url.Values{}
	v.Set("limit", strconv.Itoa(q.Limit))
	v.Set("offset", strconv.Itoa(q.Offset))
	v.Set("closed", strconv.FormatBool(q.Closed))
	if q.OrderBy != "" {
		v.Set("order_by", q.OrderBy)
		dir := "desc"
		if q.Ascending {
			dir = "asc"
		}
		v.Set("sort_by", dir)
	}
	if q.Search != "" {
		v.Set("search_term", q.Search)
	}
	if q.Category != "" {
		v.Set("category", q.Category)
	}
	return v
}

// GammaClient reads the market catalog.
type GammaClient struct {
	*httpClient
}

// Markets returns one catalog page.
func (c *GammaClient) Markets(ctx context.Context, q MarketsQuery) ([]map[string]any, error) {
	var out []map[string]any
	if err := c.getJSON(ctx, "/markets", q.values(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Market returns one market by id. An empty object yields ErrNotFound.
func (c *GammaClient) Market(ctx context.Context, id string) (map[string]any, error) {
	var out map[string]any
	if err := c.getJSON(ctx, "/markets/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}
