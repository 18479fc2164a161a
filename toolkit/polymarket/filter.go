package polymarket

import (
	"strings"
	"time"

	"github.com/hupe1980/roma/logging"
)

var endDateLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseEndDate parses the validity-end marker formats seen upstream. Markers
// without a zone are read as UTC.
func parseEndDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range endDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// endDate returns the record's end marker: endDate, else end_date_iso.
func endDate(record map[string]any) (any, bool) {
	for _, key := range []string{"endDate", "end_date_iso"} {
		if v, ok := record[key]; ok && v != nil && v != "" {
			return v, true
		}
	}
	return nil, false
}

// filterActive drops records whose end marker parses to a time strictly
// before now. Records with a missing or unparsable marker are kept, and an
// unparsable marker is logged as a warning.
func filterActive(records []map[string]any, now time.Time, logger logging.Logger) []map[string]any {
	out := make([]map[string]any, 0, len(records))
	for _, r := range records {
		raw, ok := endDate(r)
		if !ok {
			out = append(out, r)
			continue
		}
		s, isString := raw.(string)
		end, parsed := parseEndDate(s)
		if !isString || !parsed {
			logger.Warn("polymarket.filter.unparsable_end_date", "market_id", r["id"], "end_date", raw)
			out = append(out, r)
			continue
		}
		if end.Before(now) {
			logger.Debug("polymarket.filter.expired", "market_id", r["id"], "end_date", s)
			continue
		}
		out = append(out, r)
	}
	return out
}
