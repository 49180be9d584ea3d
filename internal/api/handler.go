package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sourcegraph/conc/pool"

	"github.com/eugenenazirov/budget-allocator/internal/allocator"
	"github.com/eugenenazirov/budget-allocator/internal/catalog"
	"github.com/eugenenazirov/budget-allocator/internal/metrics"
)

type contextKey string

const requestIDContextKey contextKey = "requestID"

const defaultBatchConcurrency = 4

// Handler wires allocator, catalogue and metrics dependencies into HTTP handlers.
type Handler struct {
	allocator allocator.Allocator
	storage   catalog.Storage
	metrics   *metrics.Metrics
	validate  *validator.Validate

	clock            func() time.Time
	batchConcurrency int

	mu                sync.RWMutex
	channelsUpdatedAt time.Time
}

// HandlerOption configures Handler behaviour.
type HandlerOption func(*Handler)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.clock = clock
	}
}

// WithMetrics records solve outcomes into m.
func WithMetrics(m *metrics.Metrics) HandlerOption {
	return func(h *Handler) {
		h.metrics = m
	}
}

// WithBatchConcurrency bounds how many batch scenarios are solved at once.
func WithBatchConcurrency(n int) HandlerOption {
	return func(h *Handler) {
		if n > 0 {
			h.batchConcurrency = n
		}
	}
}

// NewHandler constructs a Handler with the provided dependencies.
func NewHandler(alloc allocator.Allocator, store catalog.Storage, opts ...HandlerOption) *Handler {
	h := &Handler{
		allocator:        alloc,
		storage:          store,
		validate:         validator.New(validator.WithRequiredStructEnabled()),
		batchConcurrency: defaultBatchConcurrency,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	h.channelsUpdatedAt = h.clock()
	return h
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = r
	resp := healthResponse{
		Status:    "ok",
		Timestamp: h.clock(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetChannels(w http.ResponseWriter, r *http.Request) {
	_ = r
	channels, err := h.storage.GetChannels()
	if err != nil {
		writeInternalError(w, err)
		return
	}

	resp := channelsResponse{
		Channels:  channels,
		UpdatedAt: h.currentChannelsUpdatedAt(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handlePutChannels(w http.ResponseWriter, r *http.Request) {
	var req channelsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", "unable to parse JSON payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid channels", err.Error())
		return
	}

	if err := h.storage.SetChannels(toChannels(req.Channels)); err != nil {
		if errors.Is(err, catalog.ErrInvalidChannels) {
			writeError(w, http.StatusBadRequest, "Invalid channels", err.Error())
			return
		}
		writeInternalError(w, err)
		return
	}

	h.markChannelsUpdated()

	channels, err := h.storage.GetChannels()
	if err != nil {
		writeInternalError(w, err)
		return
	}

	resp := channelsResponse{
		Channels:  channels,
		UpdatedAt: h.currentChannelsUpdatedAt(),
		Message:   "Channels updated successfully",
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleAllocate(w http.ResponseWriter, r *http.Request) {
	var req allocateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", "unable to parse JSON payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}

	start := time.Now()
	out, err := h.solve(req)
	elapsed := time.Since(start)

	if err != nil {
		if isInputError(err) {
			writeError(w, http.StatusBadRequest, "Invalid request", err.Error())
			return
		}
		writeInternalError(w, err)
		return
	}

	switch out.result.Status {
	case allocator.StatusOptimal:
		resp := allocateResponse{
			Status:            out.result.Status.String(),
			Budget:            out.budget,
			Allocations:       entries(out.names, out.result.Allocation),
			Objective:         out.result.Objective,
			TotalAllocated:    total(out.result.Allocation),
			CalculationTimeMs: elapsed.Milliseconds(),
		}
		writeJSON(w, http.StatusOK, resp)
	case allocator.StatusInfeasible:
		suggestion := fmt.Sprintf("Choose a budget between %g and %g or relax the channel bounds", out.minBudget, out.maxBudget)
		writeError(w, http.StatusUnprocessableEntity, "Infeasible allocation", out.result.Message, suggestion)
	default:
		writeError(w, http.StatusInternalServerError, "Solver failure", out.result.Message)
	}
}

func (h *Handler) handleAllocateBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", "unable to parse JSON payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}

	start := time.Now()
	results := make([]batchResult, len(req.Scenarios))

	p := pool.New().WithMaxGoroutines(h.batchConcurrency)
	for i, scenario := range req.Scenarios {
		p.Go(func() {
			results[i] = h.solveScenario(i, scenario)
		})
	}
	p.Wait()

	resp := batchResponse{
		Results:           results,
		CalculationTimeMs: time.Since(start).Milliseconds(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) solveScenario(index int, req allocateRequest) batchResult {
	res := batchResult{Index: index}

	out, err := h.solve(req)
	if err != nil {
		res.Status = "invalid"
		res.Error = err.Error()
		return res
	}

	res.Status = out.result.Status.String()
	res.Message = out.result.Message
	if out.result.Success() {
		res.Allocations = entries(out.names, out.result.Allocation)
		res.Objective = out.result.Objective
		res.TotalAllocated = total(out.result.Allocation)
	}
	return res
}

type solveOutcome struct {
	names     []string
	budget    float64
	minBudget float64
	maxBudget float64
	result    allocator.Result
}

// solve resolves the channel set for req, falling back to the catalogue, and runs the allocator.
func (h *Handler) solve(req allocateRequest) (solveOutcome, error) {
	var channels []catalog.Channel
	if len(req.Channels) > 0 {
		normalized, err := catalog.Normalize(toChannels(req.Channels))
		if err != nil {
			return solveOutcome{}, err
		}
		channels = normalized
	} else {
		stored, err := h.storage.GetChannels()
		if err != nil {
			return solveOutcome{}, err
		}
		channels = stored
	}

	names, coeffs, bounds := catalog.Split(channels)
	out := solveOutcome{names: names, budget: *req.Budget}
	for _, b := range bounds {
		out.minBudget += b.Lower
		out.maxBudget += b.Upper
	}

	start := time.Now()
	result, err := h.allocator.Allocate(coeffs, *req.Budget, bounds)
	if err != nil {
		return solveOutcome{}, err
	}
	h.metrics.ObserveSolve(result.Status.String(), time.Since(start))

	out.result = result
	return out, nil
}

func isInputError(err error) bool {
	return errors.Is(err, catalog.ErrInvalidChannels) ||
		errors.Is(err, allocator.ErrNoChannels) ||
		errors.Is(err, allocator.ErrLengthMismatch) ||
		errors.Is(err, allocator.ErrInvalidBudget) ||
		errors.Is(err, allocator.ErrInvalidBounds) ||
		errors.Is(err, allocator.ErrInvalidCoefficient)
}

func entries(names []string, values []float64) []allocationEntry {
	out := make([]allocationEntry, len(values))
	for i, v := range values {
		out[i] = allocationEntry{Channel: names[i], Amount: v}
	}
	return out
}

func total(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum
}

func toChannels(payload []channelPayload) []catalog.Channel {
	out := make([]catalog.Channel, len(payload))
	for i, p := range payload {
		out[i] = catalog.Channel{
			Name:        p.Name,
			Coefficient: *p.Coefficient,
			Lower:       p.Lower,
			Upper:       p.Upper,
		}
	}
	return out
}

func (h *Handler) currentChannelsUpdatedAt() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.channelsUpdatedAt
}

func (h *Handler) markChannelsUpdated() {
	h.mu.Lock()
	h.channelsUpdatedAt = h.clock()
	h.mu.Unlock()
}

func requestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDContextKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

type channelPayload struct {
	Name        string   `json:"name" validate:"required"`
	Coefficient *float64 `json:"coefficient" validate:"required"`
	Lower       float64  `json:"lower" validate:"gte=0"`
	Upper       float64  `json:"upper" validate:"gtefield=Lower"`
}

type channelsRequest struct {
	Channels []channelPayload `json:"channels" validate:"required,min=1,max=32,dive"`
}

type allocateRequest struct {
	Budget   *float64         `json:"budget" validate:"required,gte=0"`
	Channels []channelPayload `json:"channels,omitempty" validate:"omitempty,max=32,dive"`
}

type batchRequest struct {
	Scenarios []allocateRequest `json:"scenarios" validate:"required,min=1,max=64,dive"`
}

type allocationEntry struct {
	Channel string  `json:"channel"`
	Amount  float64 `json:"amount"`
}

type allocateResponse struct {
	Status            string            `json:"status"`
	Budget            float64           `json:"budget"`
	Allocations       []allocationEntry `json:"allocations"`
	Objective         float64           `json:"objective"`
	TotalAllocated    float64           `json:"totalAllocated"`
	CalculationTimeMs int64             `json:"calculationTimeMs"`
}

type batchResult struct {
	Index          int               `json:"index"`
	Status         string            `json:"status"`
	Allocations    []allocationEntry `json:"allocations,omitempty"`
	Objective      float64           `json:"objective,omitempty"`
	TotalAllocated float64           `json:"totalAllocated,omitempty"`
	Message        string            `json:"message,omitempty"`
	Error          string            `json:"error,omitempty"`
}

type batchResponse struct {
	Results           []batchResult `json:"results"`
	CalculationTimeMs int64         `json:"calculationTimeMs"`
}

type channelsResponse struct {
	Channels  []catalog.Channel `json:"channels"`
	UpdatedAt time.Time         `json:"updatedAt"`
	Message   string            `json:"message,omitempty"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type errorResponse struct {
	Error      string `json:"error"`
	Details    string `json:"details,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message, details string, suggestion ...string) {
	resp := errorResponse{
		Error:   message,
		Details: details,
	}
	if len(suggestion) > 0 {
		resp.Suggestion = suggestion[0]
	}
	writeJSON(w, status, resp)
}

func writeInternalError(w http.ResponseWriter, err error) {
	writeError(w, http.StatusInternalServerError, "Internal error", err.Error())
}
