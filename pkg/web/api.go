package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/dbehnke/convfec/pkg/database"
	"github.com/dbehnke/convfec/pkg/fec"
	"github.com/dbehnke/convfec/pkg/logger"
)

const maxBodyBytes = 1 << 20

// RunStore is the read side of the sweep repository
type RunStore interface {
	ListRuns(page, perPage int) ([]database.SweepRun, int64, error)
	GetRun(id string) (*database.SweepRun, error)
}

// API handles REST API endpoints
type API struct {
	logger   *logger.Logger
	code     *fec.Code
	metric   fec.Metric
	puncture *fec.PuncturePattern
	runs     RunStore
}

// NewAPI creates a new API serving the given code. runs may be nil when
// persistence is disabled.
func NewAPI(code *fec.Code, metric fec.Metric, puncture *fec.PuncturePattern, runs RunStore, log *logger.Logger) *API {
	if log == nil {
		log = logger.New(logger.Config{Level: "info"})
	}
	return &API{
		logger:   log.WithComponent("web.api"),
		code:     code,
		metric:   metric,
		puncture: puncture,
		runs:     runs,
	}
}

// CodeResponse describes the configured code
type CodeResponse struct {
	Generators       []string `json:"generators"`
	ConstraintLength int      `json:"constraint_length"`
	Rate             string   `json:"rate"`
	NumStates        int      `json:"num_states"`
	Depth            int      `json:"depth"`
	Metric           string   `json:"metric"`
	Puncture         string   `json:"puncture,omitempty"`
	PuncturedRate    string   `json:"punctured_rate,omitempty"`
}

// EncodeRequest is the body of POST /api/encode
type EncodeRequest struct {
	Bits       string `json:"bits"`                  // e.g. "1011 0010"
	StartState string `json:"start_state,omitempty"` // most recent bit first; default all zeros
	Terminate  bool   `json:"terminate,omitempty"`
}

// EncodeResponse is returned by POST /api/encode
type EncodeResponse struct {
	Symbols  string `json:"symbols"`
	EndState string `json:"end_state"`
	Stages   int    `json:"stages"`
}

// DecodeRequest is the body of POST /api/decode
type DecodeRequest struct {
	Symbols   []int  `json:"symbols"`          // -1 marks an erasure
	Metric    string `json:"metric,omitempty"` // hard or soft; default is the configured metric
	QuantBits int    `json:"quant_bits,omitempty"`
}

// DecodeResponse is returned by POST /api/decode
type DecodeResponse struct {
	Bits   string `json:"bits"`
	Stages int    `json:"stages"`
	Metric string `json:"metric"`
}

// RunsResponse is returned by GET /api/runs
type RunsResponse struct {
	Runs    []database.SweepRun `json:"runs"`
	Total   int64               `json:"total"`
	Page    int                 `json:"page"`
	PerPage int                 `json:"per_page"`
}

// HandleCode handles the /api/code endpoint
func (a *API) HandleCode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := CodeResponse{
		Generators:       a.code.Generators(),
		ConstraintLength: a.code.ConstraintLength(),
		Rate:             fmt.Sprintf("1/%d", a.code.Rate()),
		NumStates:        a.code.NumStates(),
		Depth:            a.code.DecisionDepth(),
		Metric:           a.metric.Name(),
	}
	if a.puncture != nil {
		num, den := a.puncture.Rate()
		resp.Puncture = a.puncture.String()
		resp.PuncturedRate = fmt.Sprintf("%d/%d", num, den)
	}
	a.writeJSON(w, http.StatusOK, resp)
}

// HandleEncode handles the /api/encode endpoint
func (a *API) HandleEncode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req EncodeRequest
	if !a.decodeBody(w, r, &req) {
		return
	}

	bits, err := fec.ParseBits(req.Bits)
	if err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	var start fec.State
	if req.StartState != "" {
		if start, err = a.code.ParseState(req.StartState); err != nil {
			a.writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	var symbols []uint8
	var end fec.State
	if req.Terminate {
		symbols, err = a.code.EncodeTerminated(bits, start)
	} else {
		symbols, end, err = a.code.Encode(bits, start)
	}
	if err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}

	a.writeJSON(w, http.StatusOK, EncodeResponse{
		Symbols:  fec.FormatBits(symbols),
		EndState: a.code.FormatState(end),
		Stages:   len(symbols) / a.code.Rate(),
	})
}

// HandleDecode handles the /api/decode endpoint
func (a *API) HandleDecode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req DecodeRequest
	if !a.decodeBody(w, r, &req) {
		return
	}

	metric := a.metric
	if req.Metric != "" {
		m, err := fec.ParseMetric(req.Metric, req.QuantBits)
		if err != nil {
			a.writeError(w, http.StatusBadRequest, err)
			return
		}
		metric = m
	}

	bits, err := a.code.Decode(req.Symbols, metric)
	if err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}

	a.writeJSON(w, http.StatusOK, DecodeResponse{
		Bits:   fec.FormatBits(bits),
		Stages: len(bits),
		Metric: metric.Name(),
	})
}

// HandleRuns handles the /api/runs endpoint
func (a *API) HandleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if a.runs == nil {
		a.writeError(w, http.StatusServiceUnavailable, errors.New("sweep storage is disabled"))
		return
	}

	page := queryInt(r, "page", 1)
	perPage := queryInt(r, "per_page", 20)
	if perPage > 100 {
		perPage = 100
	}

	runs, total, err := a.runs.ListRuns(page, perPage)
	if err != nil {
		a.logger.Error("Failed to list sweep runs", logger.Error(err))
		a.writeError(w, http.StatusInternalServerError, errors.New("failed to list runs"))
		return
	}
	if runs == nil {
		runs = []database.SweepRun{}
	}

	a.writeJSON(w, http.StatusOK, RunsResponse{Runs: runs, Total: total, Page: page, PerPage: perPage})
}

// HandleRun handles the /api/runs/{id} endpoint
func (a *API) HandleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if a.runs == nil {
		a.writeError(w, http.StatusServiceUnavailable, errors.New("sweep storage is disabled"))
		return
	}

	run, err := a.runs.GetRun(r.PathValue("id"))
	if errors.Is(err, database.ErrRunNotFound) {
		a.writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		a.logger.Error("Failed to load sweep run", logger.Error(err))
		a.writeError(w, http.StatusInternalServerError, errors.New("failed to load run"))
		return
	}

	a.writeJSON(w, http.StatusOK, run)
}

func (a *API) decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		a.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return false
	}
	return true
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Warn("Failed to encode response", logger.Error(err))
	}
}

func (a *API) writeError(w http.ResponseWriter, status int, err error) {
	a.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v < 1 {
		return def
	}
	return v
}
