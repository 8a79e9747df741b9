package thetadata

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"options-flow-lab/internal/domain"
	"options-flow-lab/internal/idhash"
)

// The upstream serves two shapes for the same data: row-oriented object
// arrays and columnar parallel arrays with a header naming the columns.
// Normalization folds both into the same field map before extraction.
type envelope struct {
	Header struct {
		Format []string `json:"format"`
	} `json:"header"`
	Response json.RawMessage `json:"response"`
}

// Field alias tables. The upstream has renamed columns across API versions;
// extraction picks the first present alias.
var (
	aliasTimestamp  = []string{"timestamp", "ts_ms", "trade_ts"}
	aliasDate       = []string{"date", "trade_date"}
	aliasMsOfDay    = []string{"ms_of_day", "ms_since_midnight"}
	aliasExpiration = []string{"expiration", "exp", "expiry"}
	aliasStrike     = []string{"strike", "strike_price"}
	aliasRight      = []string{"right", "option_right", "put_call"}
	aliasPrice      = []string{"price", "trade_price", "last"}
	aliasSize       = []string{"size", "quantity", "qty"}
	aliasBid        = []string{"bid", "best_bid"}
	aliasAsk        = []string{"ask", "best_ask"}
	aliasCondition  = []string{"condition", "trade_condition", "condition_code"}
	aliasExchange   = []string{"exchange", "exchange_name", "venue"}
	aliasOI         = []string{"open_interest", "oi"}
	aliasClose      = []string{"close", "close_price", "price"}
)

var exchangeTZ = func() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		panic(fmt.Sprintf("load exchange timezone: %v", err))
	}
	return loc
}()

// decodeRows folds either response shape into field maps.
func decodeRows(body []byte) ([]map[string]json.RawMessage, error) {
	if len(body) == 0 {
		return nil, nil
	}

	raw := json.RawMessage(body)
	var format []string

	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "{") {
		var env envelope
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, fmt.Errorf("unmarshal envelope: %w", err)
		}
		raw = env.Response
		format = env.Header.Format
	}

	if len(raw) == 0 {
		return nil, nil
	}

	// Try object rows first.
	var objRows []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &objRows); err == nil {
		return objRows, nil
	}

	// Columnar rows need the header to name the columns.
	var arrRows [][]json.RawMessage
	if err := json.Unmarshal(raw, &arrRows); err != nil {
		return nil, fmt.Errorf("unmarshal response rows: %w", err)
	}
	if len(arrRows) > 0 && len(format) == 0 {
		return nil, fmt.Errorf("columnar response without header format")
	}

	rows := make([]map[string]json.RawMessage, 0, len(arrRows))
	for _, arr := range arrRows {
		row := make(map[string]json.RawMessage, len(arr))
		for i, v := range arr {
			if i < len(format) {
				row[format[i]] = v
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// normalizeTrades converts an upstream trade response into raw trades with
// computed content-hash ids. Rows missing any required field are skipped.
func normalizeTrades(body []byte, symbol string) ([]*domain.RawTrade, error) {
	rows, err := decodeRows(body)
	if err != nil {
		return nil, err
	}

	var trades []*domain.RawTrade
	for _, row := range rows {
		tsMs, ok := pickTimestamp(row)
		if !ok {
			continue
		}
		expiration, ok := pickExpiration(row)
		if !ok {
			continue
		}
		strike, ok := pickFloat(row, aliasStrike)
		if !ok {
			continue
		}
		right, ok := pickRight(row)
		if !ok {
			continue
		}
		price, ok := pickFloat(row, aliasPrice)
		if !ok {
			continue
		}
		size, ok := pickInt(row, aliasSize)
		if !ok {
			continue
		}

		t := &domain.RawTrade{
			TradeTsMs:  tsMs,
			Symbol:     symbol,
			Expiration: expiration,
			Strike:     strike,
			Right:      right,
			Price:      price,
			Size:       size,
		}

		if bid, ok := pickFloat(row, aliasBid); ok {
			t.Bid = &bid
		}
		if ask, ok := pickFloat(row, aliasAsk); ok {
			t.Ask = &ask
		}
		if cond, ok := pickString(row, aliasCondition); ok {
			t.ConditionCode = &cond
		}
		if exch, ok := pickString(row, aliasExchange); ok {
			t.Exchange = &exch
		}

		payload, err := json.Marshal(row)
		if err != nil {
			return nil, fmt.Errorf("marshal raw payload: %w", err)
		}
		t.RawPayload = payload

		var cond, exch string
		if t.ConditionCode != nil {
			cond = *t.ConditionCode
		}
		if t.Exchange != nil {
			exch = *t.Exchange
		}
		t.TradeID = idhash.ComputeTradeID(
			t.Symbol, t.Expiration, t.Strike, t.Right, t.TradeTsMs, t.Price, t.Size, cond, exch,
		)

		trades = append(trades, t)
	}

	return trades, nil
}

// normalizeOpenInterest converts an open-interest response into a per-contract
// map. Rows missing the contract identity or the OI value are skipped.
func normalizeOpenInterest(body []byte, symbol string) (map[domain.ContractKey]int64, error) {
	rows, err := decodeRows(body)
	if err != nil {
		return nil, err
	}

	out := make(map[domain.ContractKey]int64)
	for _, row := range rows {
		expiration, ok := pickExpiration(row)
		if !ok {
			continue
		}
		strike, ok := pickFloat(row, aliasStrike)
		if !ok {
			continue
		}
		right, ok := pickRight(row)
		if !ok {
			continue
		}
		oi, ok := pickInt(row, aliasOI)
		if !ok {
			continue
		}
		key := domain.ContractKey{Symbol: symbol, Expiration: expiration, Strike: strike, Right: right}
		out[key] = oi
	}
	return out, nil
}

// normalizeSpot extracts the closing spot price from an EOD response.
// Returns nil when the response has no usable row.
func normalizeSpot(body []byte) (*float64, error) {
	rows, err := decodeRows(body)
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		if v, ok := pickFloat(row, aliasClose); ok {
			return &v, nil
		}
	}
	return nil, nil
}

// pickTimestamp resolves the trade timestamp. Epoch-ms fields win; otherwise
// date + ms_of_day are combined in exchange time and converted to UTC.
func pickTimestamp(row map[string]json.RawMessage) (int64, bool) {
	if ts, ok := pickInt(row, aliasTimestamp); ok && ts > 0 {
		return ts, true
	}

	dateStr, ok := pickString(row, aliasDate)
	if !ok {
		return 0, false
	}
	day, ok := parseDay(dateStr)
	if !ok {
		return 0, false
	}
	msOfDay, ok := pickInt(row, aliasMsOfDay)
	if !ok {
		return 0, false
	}

	t, err := time.ParseInLocation(domain.DayFormat, day, exchangeTZ)
	if err != nil {
		return 0, false
	}
	return t.UnixMilli() + msOfDay, true
}

func pickExpiration(row map[string]json.RawMessage) (string, bool) {
	s, ok := pickString(row, aliasExpiration)
	if !ok {
		return "", false
	}
	return parseDay(s)
}

// parseDay accepts YYYY-MM-DD or YYYYMMDD and returns YYYY-MM-DD.
func parseDay(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) == 10 && s[4] == '-' && s[7] == '-' {
		if _, err := time.Parse(domain.DayFormat, s); err == nil {
			return s, true
		}
		return "", false
	}
	if len(s) == 8 {
		if t, err := time.Parse("20060102", s); err == nil {
			return t.Format(domain.DayFormat), true
		}
	}
	return "", false
}

func pickRight(row map[string]json.RawMessage) (string, bool) {
	s, ok := pickString(row, aliasRight)
	if !ok {
		return "", false
	}
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "C", "CALL":
		return domain.RightCall, true
	case "P", "PUT":
		return domain.RightPut, true
	}
	return "", false
}

// pickString returns the first present alias coerced to string. Numbers are
// rendered without a decimal point when integral, so date columns delivered
// as numbers survive the round trip.
func pickString(row map[string]json.RawMessage, aliases []string) (string, bool) {
	for _, a := range aliases {
		raw, ok := row[a]
		if !ok || len(raw) == 0 || string(raw) == "null" {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if s == "" {
				continue
			}
			return s, true
		}
		var f float64
		if err := json.Unmarshal(raw, &f); err == nil {
			if f == float64(int64(f)) {
				return strconv.FormatInt(int64(f), 10), true
			}
			return strconv.FormatFloat(f, 'g', -1, 64), true
		}
	}
	return "", false
}

// pickFloat returns the first present alias coerced to float64.
func pickFloat(row map[string]json.RawMessage, aliases []string) (float64, bool) {
	for _, a := range aliases {
		raw, ok := row[a]
		if !ok || len(raw) == 0 || string(raw) == "null" {
			continue
		}
		var f float64
		if err := json.Unmarshal(raw, &f); err == nil {
			return f, true
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

// pickInt returns the first present alias coerced to int64.
func pickInt(row map[string]json.RawMessage, aliases []string) (int64, bool) {
	if f, ok := pickFloat(row, aliases); ok {
		return int64(f), true
	}
	return 0, false
}
