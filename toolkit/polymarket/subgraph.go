package polymarket

import (
	"context"
	"fmt"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

const marketTradesQuery = `query MarketTrades($market: String!, $first: Int!) {
  trades(where: { market: $market }, first: $first, orderBy: timestamp, orderDirection: desc) {
    id
    market
    user
    outcome
    amount
    price
    timestamp
    transactionHash
  }
}`

const userPositionsQuery = `query UserPositions($user: String!, $first: Int!) {
  positions(where: { user: $user }, first: $first) {
    id
    market
    user
    outcome
    balance
    totalBought
    totalSold
    averageBuyPrice
    averageSellPrice
  }
}`

// GraphQLError carries the errors array of a GraphQL response.
type GraphQLError struct {
	Messages []string
}

func (e *GraphQLError) Error() string {
	return "subgraph: " + strings.Join(e.Messages, "; ")
}

type graphQLResponse struct {
	Data   map[string][]map[string]any `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// SubgraphClient runs GraphQL queries against the Polymarket subgraph.
type SubgraphClient struct {
	*httpClient
}

func subgraphURL(tmpl, apiKey string) string {
	return strings.ReplaceAll(tmpl, "{api_key}", apiKey)
}

// Query validates query, sends it with variables and returns the list held
// under field of the data object.
func (c *SubgraphClient) Query(ctx context.Context, query string, variables map[string]any, field string) ([]map[string]any, error) {
	if _, err := parser.ParseQuery(&ast.Source{Input: query}); err != nil {
		return nil, fmt.Errorf("subgraph: invalid query: %w", err)
	}

	var resp graphQLResponse
	if err := c.postJSON(ctx, map[string]any{"query": query, "variables": variables}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		msgs := make([]string, len(resp.Errors))
		for i, e := range resp.Errors {
			msgs[i] = e.Message
		}
		return nil, &GraphQLError{Messages: msgs}
	}
	return resp.Data[field], nil
}

// MarketTrades returns the latest on-chain trades of a market.
func (c *SubgraphClient) MarketTrades(ctx context.Context, marketID string, limit int) ([]map[string]any, error) {
	return c.Query(ctx, marketTradesQuery, map[string]any{"market": marketID, "first": limit}, "trades")
}

// UserPositions returns on-chain positions of a wallet. Addresses are
// matched lower-cased.
func (c *SubgraphClient) UserPositions(ctx context.Context, user string, limit int) ([]map[string]any, error) {
	return c.Query(ctx, userPositionsQuery, map[string]any{"user": strings.ToLower(user), "first": limit}, "positions")
}
