package api

import (
	"net/http"
	"strconv"

	"github.com/goodtune/tabtime/internal/metrics"
	"github.com/goodtune/tabtime/internal/period"
	"github.com/goodtune/tabtime/internal/storage"
	"github.com/google/uuid"
)

// handleTrack persists one time slice. The server assigns the timestamp and
// its day and week buckets.
func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	var req TrackRequest
	if err := bindJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	now := s.clock.Now()
	slice := storage.TimeSlice{
		ID:         uuid.NewString(),
		Domain:     req.Domain,
		URL:        req.URL,
		Productive: req.Productive,
		TimeSpent:  req.TimeSpent,
		Timestamp:  now,
		Date:       period.DateBucket(now),
		Week:       period.WeekBucket(now),
	}

	if err := s.store.Slices().Append(r.Context(), slice); err != nil {
		s.logger.Error().Err(err).Str("domain", slice.Domain).Msg("Failed to save time slice")
		writeError(w, http.StatusInternalServerError, "Failed to save time entry")
		return
	}

	productive := strconv.FormatBool(slice.Productive)
	metrics.SlicesRecorded.WithLabelValues(productive).Inc()
	metrics.TrackedSeconds.WithLabelValues(productive).Add(float64(slice.TimeSpent))

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Time entry saved",
	})
}

// handleAnalytics returns totals and rankings for the requested range. A
// missing or unknown range covers all time.
func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	rng := period.ParseRange(r.URL.Query().Get("range"))

	report, err := s.aggregator.Aggregate(r.Context(), rng)
	if err != nil {
		s.logger.Error().Err(err).Str("range", string(rng)).Msg("Failed to aggregate analytics")
		writeError(w, http.StatusInternalServerError, "Failed to compute analytics")
		return
	}

	writeJSON(w, http.StatusOK, report)
}
