package testutil

// Market returns a Gamma-style market record. An empty endDate omits the
// field.
func Market(id, question, endDate string) map[string]any {
	m := map[string]any{
		"id":            id,
		"question":      question,
		"description":   question + " description",
		"outcomes":      `["Yes", "No"]`,
		"outcomePrices": `["0.62", "0.38"]`,
		"volume24hr":    1250.5,
		"liquidity":     "9800.25",
		"active":        true,
	}
	if endDate != "" {
		m["endDate"] = endDate
	}
	return m
}

// Markets returns n open markets ending in 2099.
func Markets(n int) []map[string]any {
	out := make([]map[string]any, n)
	for i := range out {
		id := string(rune('a' + i%26))
		out[i] = Market(id, "Market "+id, "2099-01-01T00:00:00Z")
	}
	return out
}
