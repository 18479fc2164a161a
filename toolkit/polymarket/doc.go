// Package polymarket exposes Polymarket prediction market data as tools.
//
// Three upstream clients back the operations:
//
//	Gamma     market catalog (search, ranking, details)
//	Data      positions, trades, activity and holders
//	Subgraph  on-chain trades and positions (requires a Graph API key)
//
// Clients are created lazily on first use, at most once each, and released
// by Close. Operations never return errors: upstream faults are logged and
// reported through the Success and Error fields of the result. Markets whose
// end date has passed are dropped from ranked listings; markets whose end
// date is missing or unparsable are kept.
//
// Results are cached per toolkit for Options.CacheTTL, keyed by operation and
// arguments. Failures are not cached.
package polymarket
