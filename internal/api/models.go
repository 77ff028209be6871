package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/goodtune/tabtime/internal/storage"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}

// TrackRequest reports one completed time slice.
type TrackRequest struct {
	URL        string `json:"url"`
	Domain     string `json:"domain" validate:"required"`
	Productive bool   `json:"productive"`
	TimeSpent  int64  `json:"timeSpent" validate:"min=1"`
}

func (r *TrackRequest) normalize() {
	r.Domain = storage.NormalizeWebsite(r.Domain)
}

// LimitRequest creates or updates a limit.
type LimitRequest struct {
	Website string `json:"website" validate:"required"`
	Minutes *int64 `json:"minutes" validate:"required,min=0"`
	Type    string `json:"type" validate:"required,oneof=daily weekly"`
}

func (r *LimitRequest) normalize() {
	r.Website = storage.NormalizeWebsite(r.Website)
	r.Type = strings.ToLower(strings.TrimSpace(r.Type))
}

// DeleteLimitRequest removes one or both limits of a website.
type DeleteLimitRequest struct {
	Website string `json:"website" validate:"required"`
	Type    string `json:"type" validate:"omitempty,oneof=daily weekly"`
}

func (r *DeleteLimitRequest) normalize() {
	r.Website = storage.NormalizeWebsite(r.Website)
	r.Type = strings.ToLower(strings.TrimSpace(r.Type))
}

// UsageRequest adds seconds to today's usage counter.
type UsageRequest struct {
	Website string `json:"website" validate:"required"`
	Seconds int64  `json:"seconds" validate:"min=1"`
}

func (r *UsageRequest) normalize() {
	r.Website = storage.NormalizeWebsite(r.Website)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		http.Error(w, `{"error":"Internal Server Error","message":"Failed to encode response"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(buf.Bytes())
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}
