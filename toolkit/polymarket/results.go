package polymarket

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cast"
)

// Market is one catalog entry.
type Market struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Category    string   `json:"category,omitempty"`
	PriceYes    *float64 `json:"price_yes,omitempty"`
	PriceNo     *float64 `json:"price_no,omitempty"`
	Volume24h   *float64 `json:"volume_24h,omitempty"`
	VolumeTotal *float64 `json:"volume_total,omitempty"`
	Liquidity   *float64 `json:"liquidity,omitempty"`
	StartDate   string   `json:"start_date,omitempty"`
	EndDate     string   `json:"end_date,omitempty"`
	Active      bool     `json:"active"`
	Outcomes    []string `json:"outcomes,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// MarketSearchResult is returned by the listing operations.
type MarketSearchResult struct {
	Success bool     `json:"success"`
	Query   string   `json:"query"`
	Count   int      `json:"count"`
	Markets []Market `json:"markets"`
	Error   string   `json:"error,omitempty"`
}

// MarketDetails is returned by MarketDetails.
type MarketDetails struct {
	Success  bool    `json:"success"`
	MarketID string  `json:"market_id"`
	Market   *Market `json:"market,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// Position is one holding of a wallet.
type Position struct {
	MarketID      string   `json:"market_id"`
	MarketTitle   string   `json:"market_title,omitempty"`
	Outcome       string   `json:"outcome"`
	Size          float64  `json:"size"`
	Value         float64  `json:"value"`
	EntryPrice    *float64 `json:"entry_price,omitempty"`
	CurrentPrice  *float64 `json:"current_price,omitempty"`
	PnL           *float64 `json:"pnl,omitempty"`
	PnLPercentage *float64 `json:"pnl_percentage,omitempty"`
}

// UserPositionsResult is returned by UserPositions.
type UserPositionsResult struct {
	Success     bool       `json:"success"`
	UserAddress string     `json:"user_address"`
	Count       int        `json:"count"`
	TotalValue  float64    `json:"total_value"`
	Positions   []Position `json:"positions"`
	Error       string     `json:"error,omitempty"`
}

// Holder is one top holder of a market outcome.
type Holder struct {
	Address      string   `json:"address"`
	Name         string   `json:"name,omitempty"`
	Outcome      string   `json:"outcome,omitempty"`
	Token        string   `json:"token,omitempty"`
	Size         float64  `json:"size"`
	Value        *float64 `json:"value,omitempty"`
	EntryPrice   *float64 `json:"entry_price,omitempty"`
	CurrentPrice *float64 `json:"current_price,omitempty"`
	PnL          *float64 `json:"pnl,omitempty"`
}

// MarketHoldersResult is returned by MarketHolders.
type MarketHoldersResult struct {
	Success  bool     `json:"success"`
	MarketID string   `json:"market_id"`
	Count    int      `json:"count"`
	Holders  []Holder `json:"holders"`
	Error    string   `json:"error,omitempty"`
}

// Trade is one fill, from the Data API or the subgraph.
type Trade struct {
	ID              string  `json:"id,omitempty"`
	Market          string  `json:"market"`
	Title           string  `json:"title,omitempty"`
	User            string  `json:"user"`
	Outcome         string  `json:"outcome"`
	Side            string  `json:"side,omitempty"`
	Size            float64 `json:"size"`
	Price           float64 `json:"price"`
	Timestamp       int64   `json:"timestamp"`
	TransactionHash string  `json:"transaction_hash,omitempty"`
}

// TradesResult is returned by RecentTrades and OnchainMarketTrades.
type TradesResult struct {
	Success bool    `json:"success"`
	Query   string  `json:"query"`
	Count   int     `json:"count"`
	Trades  []Trade `json:"trades"`
	Error   string  `json:"error,omitempty"`
}

// Activity is one account event.
type Activity struct {
	Type            string  `json:"type"`
	Market          string  `json:"market,omitempty"`
	Title           string  `json:"title,omitempty"`
	User            string  `json:"user"`
	Size            float64 `json:"size"`
	USDCSize        float64 `json:"usdc_size,omitempty"`
	Timestamp       int64   `json:"timestamp"`
	TransactionHash string  `json:"transaction_hash,omitempty"`
}

// ActivityResult is returned by UserActivity.
type ActivityResult struct {
	Success     bool       `json:"success"`
	UserAddress string     `json:"user_address"`
	Count       int        `json:"count"`
	Activities  []Activity `json:"activities"`
	Error       string     `json:"error,omitempty"`
}

// OnchainPosition is a position as indexed by the subgraph.
type OnchainPosition struct {
	ID               string  `json:"id"`
	Market           string  `json:"market"`
	User             string  `json:"user"`
	Outcome          string  `json:"outcome"`
	Balance          float64 `json:"balance"`
	TotalBought      float64 `json:"total_bought"`
	TotalSold        float64 `json:"total_sold"`
	AverageBuyPrice  float64 `json:"average_buy_price"`
	AverageSellPrice float64 `json:"average_sell_price"`
}

// OnchainPositionsResult is returned by OnchainUserPositions.
type OnchainPositionsResult struct {
	Success     bool              `json:"success"`
	UserAddress string            `json:"user_address"`
	Count       int               `json:"count"`
	Positions   []OnchainPosition `json:"positions"`
	Error       string            `json:"error,omitempty"`
}

// first returns the first non-nil value among keys.
func first(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func str(m map[string]any, keys ...string) string {
	return cast.ToString(first(m, keys...))
}

func num(m map[string]any, keys ...string) float64 {
	return cast.ToFloat64(first(m, keys...))
}

// optNum returns nil when no key holds a number.
func optNum(m map[string]any, keys ...string) *float64 {
	v := first(m, keys...)
	if v == nil {
		return nil
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return nil
	}
	return &f
}

// stringList accepts a JSON array or a JSON-encoded array string.
func stringList(v any) []string {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		var arr []any
		if err := json.Unmarshal([]byte(x), &arr); err == nil {
			return stringList(arr)
		}
		if x == "" {
			return nil
		}
		return []string{x}
	case []any:
		out := make([]string, 0, len(x))
		for _, e := range x {
			if m, ok := e.(map[string]any); ok {
				out = append(out, str(m, "label", "slug", "name"))
				continue
			}
			out = append(out, cast.ToString(e))
		}
		return out
	default:
		return cast.ToStringSlice(v)
	}
}

// outcomePrices returns the yes and no prices. Prices pair with the outcomes
// labels when present; otherwise index 0 is yes and index 1 is no.
func outcomePrices(m map[string]any) (yes, no *float64) {
	prices := stringList(m["outcomePrices"])
	labels := stringList(m["outcomes"])

	yesIdx, noIdx := 0, 1
	for i, l := range labels {
		switch strings.ToLower(strings.TrimSpace(l)) {
		case "yes":
			yesIdx = i
		case "no":
			noIdx = i
		}
	}

	at := func(i int) *float64 {
		if i >= len(prices) {
			return nil
		}
		f, err := cast.ToFloat64E(prices[i])
		if err != nil {
			return nil
		}
		return &f
	}
	return at(yesIdx), at(noIdx)
}

func toMarket(m map[string]any) Market {
	yes, no := outcomePrices(m)
	active := true
	if v, ok := m["active"]; ok && v != nil {
		active = cast.ToBool(v)
	}
	return Market{
		ID:          str(m, "id", "conditionId", "condition_id"),
		Title:       str(m, "question", "title"),
		Description: str(m, "description"),
		Category:    str(m, "category"),
		PriceYes:    yes,
		PriceNo:     no,
		Volume24h:   optNum(m, "volume24hr", "volume_24h"),
		VolumeTotal: optNum(m, "volumeNum", "volume"),
		Liquidity:   optNum(m, "liquidityNum", "liquidity"),
		StartDate:   str(m, "startDate", "start_date_iso"),
		EndDate:     str(m, "endDate", "end_date_iso"),
		Active:      active,
		Outcomes:    stringList(m["outcomes"]),
		Tags:        stringList(first(m, "tags")),
	}
}

func toPosition(m map[string]any) Position {
	return Position{
		MarketID:      str(m, "conditionId", "market"),
		MarketTitle:   str(m, "title", "marketQuestion"),
		Outcome:       str(m, "outcome"),
		Size:          num(m, "size"),
		Value:         num(m, "currentValue", "value"),
		EntryPrice:    optNum(m, "avgPrice", "entryPrice"),
		CurrentPrice:  optNum(m, "curPrice", "currentPrice"),
		PnL:           optNum(m, "cashPnl", "pnl"),
		PnLPercentage: optNum(m, "percentPnl", "pnlPercentage"),
	}
}

// flattenHolders expands per-token groups ({token, holders: [...]}) into one
// record per holder carrying the token. Flat records pass through.
func flattenHolders(records []map[string]any) []map[string]any {
	var out []map[string]any
	for _, r := range records {
		nested, ok := r["holders"].([]any)
		if !ok {
			out = append(out, r)
			continue
		}
		for _, h := range nested {
			hm, ok := h.(map[string]any)
			if !ok {
				continue
			}
			if _, has := hm["token"]; !has && r["token"] != nil {
				cp := make(map[string]any, len(hm)+1)
				for k, v := range hm {
					cp[k] = v
				}
				cp["token"] = r["token"]
				hm = cp
			}
			out = append(out, hm)
		}
	}
	return out
}

func toHolder(m map[string]any) Holder {
	outcome := str(m, "outcome")
	if outcome == "" {
		if idx, ok := m["outcomeIndex"]; ok && idx != nil {
			outcome = cast.ToString(idx)
		}
	}
	return Holder{
		Address:      str(m, "proxyWallet", "user", "address"),
		Name:         str(m, "name", "pseudonym"),
		Outcome:      outcome,
		Token:        str(m, "token", "asset"),
		Size:         num(m, "amount", "size"),
		Value:        optNum(m, "value", "currentValue"),
		EntryPrice:   optNum(m, "avgEntryPrice", "avgPrice"),
		CurrentPrice: optNum(m, "currentPrice", "curPrice"),
		PnL:          optNum(m, "pnl", "cashPnl"),
	}
}

func toTrade(m map[string]any) Trade {
	return Trade{
		ID:              str(m, "id"),
		Market:          str(m, "conditionId", "market"),
		Title:           str(m, "title"),
		User:            str(m, "proxyWallet", "user"),
		Outcome:         str(m, "outcome"),
		Side:            str(m, "side"),
		Size:            num(m, "size", "amount"),
		Price:           num(m, "price"),
		Timestamp:       cast.ToInt64(first(m, "timestamp")),
		TransactionHash: str(m, "transactionHash", "transaction_hash"),
	}
}

func toActivity(m map[string]any) Activity {
	return Activity{
		Type:            str(m, "type"),
		Market:          str(m, "conditionId", "market"),
		Title:           str(m, "title"),
		User:            str(m, "proxyWallet", "user"),
		Size:            num(m, "size", "amount"),
		USDCSize:        num(m, "usdcSize"),
		Timestamp:       cast.ToInt64(first(m, "timestamp")),
		TransactionHash: str(m, "transactionHash", "transaction_hash"),
	}
}

func toOnchainPosition(m map[string]any) OnchainPosition {
	return OnchainPosition{
		ID:               str(m, "id"),
		Market:           str(m, "market"),
		User:             str(m, "user"),
		Outcome:          str(m, "outcome"),
		Balance:          num(m, "balance"),
		TotalBought:      num(m, "totalBought"),
		TotalSold:        num(m, "totalSold"),
		AverageBuyPrice:  num(m, "averageBuyPrice"),
		AverageSellPrice: num(m, "averageSellPrice"),
	}
}

func mapAll[T any](records []map[string]any, limit int, fn func(map[string]any) T) []T {
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	out := make([]T, len(records))
	for i, r := range records {
		out[i] = fn(r)
	}
	return out
}
