package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"options-flow-lab/internal/histquery"
	"options-flow-lab/internal/observability"
)

// API maps HTTP requests onto the historical query engine.
type API struct {
	engine *histquery.Engine
	logger *log.Logger
}

// NewAPI creates the HTTP handler set.
func NewAPI(engine *histquery.Engine, logger *log.Logger) *API {
	return &API{engine: engine, logger: logger}
}

// Register mounts the API routes on a mux.
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/flow/historical", a.handleHistorical)
	mux.HandleFunc("/health", handleHealth)
	mux.Handle("/metrics", observability.Handler())
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// historicalResponse is the success envelope for /api/flow/historical.
type historicalResponse struct {
	Data interface{}    `json:"data"`
	Meta historicalMeta `json:"meta"`
}

type historicalMeta struct {
	DateRange   dateRange             `json:"dateRange"`
	Filter      map[string]string     `json:"filter,omitempty"`
	Total       int64                 `json:"total"`
	Diagnostics histquery.Diagnostics `json:"diagnostics"`
}

type dateRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// errorResponse is the failure envelope.
type errorResponse struct {
	Status int              `json:"status"`
	Error  *histquery.Error `json:"error"`
}

func (a *API) handleHistorical(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, histquery.NewError(histquery.CodeInvalidQuery, "method %s not allowed", r.Method))
		return
	}

	params, qerr := parseHistoricalParams(r.URL.Query())
	if qerr != nil {
		writeError(w, qerr)
		return
	}

	result, qerr := a.engine.Query(r.Context(), *params)
	if qerr != nil {
		if qerr.HTTPStatus() >= http.StatusInternalServerError {
			a.logger.Printf("[httpapi] query failed: %v", qerr)
		}
		writeError(w, qerr)
		return
	}

	resp := historicalResponse{
		Data: result.Rows,
		Meta: historicalMeta{
			DateRange: dateRange{
				From: time.UnixMilli(params.FromMs).UTC().Format(time.RFC3339),
				To:   time.UnixMilli(params.ToMs).UTC().Format(time.RFC3339),
			},
			Filter:      activeFilters(r.URL.Query()),
			Total:       result.Total,
			Diagnostics: result.Diagnostics,
		},
	}
	writeJSON(w, http.StatusOK, resp)
}

// parseHistoricalParams converts URL query values into engine params. Type
// coercion errors are reported here; semantic validation happens in the
// engine so both transports agree on the rules.
func parseHistoricalParams(q url.Values) (*histquery.QueryParams, *histquery.Error) {
	params := &histquery.QueryParams{
		Symbol:     q.Get("symbol"),
		Expiration: q.Get("expiration"),
		Side:       q.Get("side"),
		Sentiment:  q.Get("sentiment"),
	}

	// right has shipped under two names
	params.Right = q.Get("right")
	if params.Right == "" {
		params.Right = q.Get("type")
	}

	fromMs, qerr := parseInstant(q.Get("from"), "from")
	if qerr != nil {
		return nil, qerr
	}
	params.FromMs = fromMs

	toMs, qerr := parseInstant(q.Get("to"), "to")
	if qerr != nil {
		return nil, qerr
	}
	params.ToMs = toMs

	if limitStr := q.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return nil, histquery.NewError(histquery.CodeInvalidQuery, "invalid limit %q", limitStr)
		}
		params.Limit = limit
	}

	if chipsStr := q.Get("chips"); chipsStr != "" {
		for _, c := range strings.Split(chipsStr, ",") {
			if c = strings.TrimSpace(c); c != "" {
				params.Chips = append(params.Chips, c)
			}
		}
	}

	var qerr2 *histquery.Error
	params.MinValue, qerr2 = parseFloatParam(q, "minValue")
	if qerr2 != nil {
		return nil, qerr2
	}
	params.MaxValue, qerr2 = parseFloatParam(q, "maxValue")
	if qerr2 != nil {
		return nil, qerr2
	}
	params.MinSize, qerr2 = parseIntParam(q, "minSize")
	if qerr2 != nil {
		return nil, qerr2
	}
	params.MaxSize, qerr2 = parseIntParam(q, "maxSize")
	if qerr2 != nil {
		return nil, qerr2
	}
	params.MinDte, qerr2 = parseSmallIntParam(q, "minDte")
	if qerr2 != nil {
		return nil, qerr2
	}
	params.MaxDte, qerr2 = parseSmallIntParam(q, "maxDte")
	if qerr2 != nil {
		return nil, qerr2
	}
	params.MinOtmPct, qerr2 = parseFloatParam(q, "minOtmPct")
	if qerr2 != nil {
		return nil, qerr2
	}
	params.MaxOtmPct, qerr2 = parseFloatParam(q, "maxOtmPct")
	if qerr2 != nil {
		return nil, qerr2
	}
	params.MinVolOi, qerr2 = parseFloatParam(q, "minVolOi")
	if qerr2 != nil {
		return nil, qerr2
	}
	params.MaxVolOi, qerr2 = parseFloatParam(q, "maxVolOi")
	if qerr2 != nil {
		return nil, qerr2
	}
	params.MinRepeat3m, qerr2 = parseSmallIntParam(q, "minRepeat3m")
	if qerr2 != nil {
		return nil, qerr2
	}
	params.MinSigScore, qerr2 = parseFloatParam(q, "minSigScore")
	if qerr2 != nil {
		return nil, qerr2
	}
	params.MaxSigScore, qerr2 = parseFloatParam(q, "maxSigScore")
	if qerr2 != nil {
		return nil, qerr2
	}

	return params, nil
}

// parseInstant accepts an RFC3339 instant or epoch milliseconds.
func parseInstant(s, name string) (int64, *histquery.Error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, histquery.NewError(histquery.CodeInvalidQuery, "%s is required", name)
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UnixMilli(), nil
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil && ms > 0 {
		return ms, nil
	}
	return 0, histquery.NewError(histquery.CodeInvalidQuery, "invalid %s %q, want RFC3339 or epoch ms", name, s)
}

func parseFloatParam(q url.Values, name string) (*float64, *histquery.Error) {
	s := q.Get(name)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, histquery.NewError(histquery.CodeInvalidQuery, "invalid %s %q", name, s)
	}
	return &v, nil
}

func parseIntParam(q url.Values, name string) (*int64, *histquery.Error) {
	s := q.Get(name)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, histquery.NewError(histquery.CodeInvalidQuery, "invalid %s %q", name, s)
	}
	return &v, nil
}

func parseSmallIntParam(q url.Values, name string) (*int, *histquery.Error) {
	s := q.Get(name)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil, histquery.NewError(histquery.CodeInvalidQuery, "invalid %s %q", name, s)
	}
	return &v, nil
}

// activeFilters echoes the filter parameters the caller actually set, for
// the response meta block.
func activeFilters(q url.Values) map[string]string {
	names := []string{
		"chips", "right", "type", "expiration", "side", "sentiment",
		"minValue", "maxValue", "minSize", "maxSize", "minDte", "maxDte",
		"minOtmPct", "maxOtmPct", "minVolOi", "maxVolOi",
		"minRepeat3m", "minSigScore", "maxSigScore",
	}
	out := make(map[string]string)
	for _, name := range names {
		if v := q.Get(name); v != "" {
			out[name] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func writeError(w http.ResponseWriter, qerr *histquery.Error) {
	status := qerr.HTTPStatus()
	writeJSON(w, status, errorResponse{Status: status, Error: qerr})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
