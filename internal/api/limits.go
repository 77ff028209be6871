package api

import (
	"errors"
	"net/http"

	"github.com/goodtune/tabtime/internal/metrics"
	"github.com/goodtune/tabtime/internal/period"
	"github.com/goodtune/tabtime/internal/policy"
	"github.com/goodtune/tabtime/internal/storage"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// LimitsHandler handles limit and usage API requests.
type LimitsHandler struct {
	limits    storage.LimitStore
	usage     storage.UsageStore
	evaluator *policy.Engine
	clock     period.Clock
	logger    zerolog.Logger
}

// NewLimitsHandler creates a new limits handler.
func NewLimitsHandler(limits storage.LimitStore, usage storage.UsageStore, evaluator *policy.Engine, clock period.Clock, logger zerolog.Logger) *LimitsHandler {
	return &LimitsHandler{
		limits:    limits,
		usage:     usage,
		evaluator: evaluator,
		clock:     clock,
		logger:    logger.With().Str("handler", "limits").Logger(),
	}
}

// List returns limits, filtered by type when range is daily or weekly.
func (h *LimitsHandler) List(w http.ResponseWriter, r *http.Request) {
	var limitType storage.LimitType
	if rng := period.ParseRange(r.URL.Query().Get("range")); rng.Valid() {
		limitType = storage.LimitType(rng)
	}

	limits, err := h.limits.List(r.Context(), limitType)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list limits")
		writeError(w, http.StatusInternalServerError, "Failed to retrieve limits")
		return
	}
	if limits == nil {
		limits = []storage.Limit{}
	}

	writeJSON(w, http.StatusOK, limits)
}

// Upsert creates the limit for (website, type) or updates its minutes.
func (h *LimitsHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req LimitRequest
	if err := bindJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	limitType, err := storage.ParseLimitType(req.Type)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	limit, err := h.limits.Upsert(r.Context(), storage.Limit{
		Website: req.Website,
		Minutes: *req.Minutes,
		Type:    limitType,
	})
	if err != nil {
		h.logger.Error().Err(err).Str("website", req.Website).Msg("Failed to save limit")
		writeError(w, http.StatusInternalServerError, "Failed to save limit")
		return
	}

	h.logger.Info().
		Str("website", limit.Website).
		Str("type", string(limit.Type)).
		Int64("minutes", limit.Minutes).
		Msg("Limit saved")

	writeJSON(w, http.StatusCreated, limit)
}

// Delete removes the website's limit of the given type, or both when no
// type is given.
func (h *LimitsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var req DeleteLimitRequest
	if err := bindJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	deleted, err := h.limits.Delete(r.Context(), req.Website, storage.LimitType(req.Type))
	if err != nil {
		h.logger.Error().Err(err).Str("website", req.Website).Msg("Failed to delete limit")
		writeError(w, http.StatusInternalServerError, "Failed to delete limit")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"deleted": deleted,
	})
}

// IncrementUsage adds seconds to today's counter for the website.
func (h *LimitsHandler) IncrementUsage(w http.ResponseWriter, r *http.Request) {
	var req UsageRequest
	if err := bindJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	date := period.DateBucket(h.clock.Now())
	if err := h.usage.Increment(r.Context(), req.Website, date, req.Seconds); err != nil {
		h.logger.Error().Err(err).Str("website", req.Website).Msg("Failed to update usage")
		writeError(w, http.StatusInternalServerError, "Failed to update usage")
		return
	}

	metrics.UsageIncrements.Inc()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
	})
}

// Usage returns the seconds recorded for the website in the current day or
// week, summed from time slices. Other types report zero.
func (h *LimitsHandler) Usage(w http.ResponseWriter, r *http.Request) {
	website := storage.NormalizeWebsite(mux.Vars(r)["website"])

	rng := period.ParseRange(r.URL.Query().Get("type"))
	if !rng.Valid() {
		writeJSON(w, http.StatusOK, map[string]interface{}{"seconds": 0})
		return
	}

	seconds, err := h.evaluator.Usage(r.Context(), website, rng)
	if err != nil {
		h.logger.Error().Err(err).Str("website", website).Msg("Failed to sum usage")
		writeError(w, http.StatusInternalServerError, "Failed to retrieve usage")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"seconds": seconds})
}

// Counter returns today's usage counter for the website.
func (h *LimitsHandler) Counter(w http.ResponseWriter, r *http.Request) {
	website := storage.NormalizeWebsite(mux.Vars(r)["website"])
	date := period.DateBucket(h.clock.Now())

	counter, err := h.usage.Get(r.Context(), website, date)
	if errors.Is(err, storage.ErrNotFound) {
		counter = &storage.UsageCounter{Website: website, Date: date}
	} else if err != nil {
		h.logger.Error().Err(err).Str("website", website).Msg("Failed to get usage counter")
		writeError(w, http.StatusInternalServerError, "Failed to retrieve usage counter")
		return
	}

	writeJSON(w, http.StatusOK, counter)
}

// Status reports whether the domain should be blocked. Evaluation errors
// allow the domain.
func (h *LimitsHandler) Status(w http.ResponseWriter, r *http.Request) {
	domain := mux.Vars(r)["domain"]

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"shouldBlock": h.evaluator.Evaluate(r.Context(), domain),
	})
}
