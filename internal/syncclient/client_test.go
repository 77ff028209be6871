package syncclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/goodtune/tabtime/internal/storage"
	"github.com/rs/zerolog"
)

type recorder struct {
	mu       sync.Mutex
	requests map[string][]map[string]interface{}
}

func (r *recorder) handler(status map[string]int) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var body map[string]interface{}
		_ = json.NewDecoder(req.Body).Decode(&body)

		r.mu.Lock()
		r.requests[req.Method+" "+req.URL.Path] = append(r.requests[req.Method+" "+req.URL.Path], body)
		r.mu.Unlock()

		if code, ok := status[req.URL.Path]; ok {
			w.WriteHeader(code)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"error": "failed", "message": "store unavailable", "code": code})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		switch req.URL.Path {
		case "/api/limits/status/youtube.com":
			_ = json.NewEncoder(w).Encode(map[string]bool{"shouldBlock": true})
		default:
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
		}
	}
}

func setup(t *testing.T, status map[string]int) (*Client, *recorder) {
	t.Helper()

	rec := &recorder{requests: make(map[string][]map[string]interface{})}
	srv := httptest.NewServer(rec.handler(status))
	t.Cleanup(srv.Close)

	return New(Options{BaseURL: srv.URL + "/api/", Timeout: 2 * time.Second}, zerolog.Nop()), rec
}

func TestSend(t *testing.T) {
	client, rec := setup(t, nil)

	err := client.Send(context.Background(), storage.TimeSlice{
		Domain:     "github.com",
		URL:        "https://github.com/goodtune",
		Productive: true,
		TimeSpent:  120,
	})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	track := rec.requests["POST /api/track"]
	if len(track) != 1 {
		t.Fatalf("Expected one track request, got %d", len(track))
	}
	if track[0]["domain"] != "github.com" || track[0]["timeSpent"] != float64(120) || track[0]["productive"] != true {
		t.Errorf("Unexpected track body: %v", track[0])
	}

	usage := rec.requests["POST /api/limits/usage"]
	if len(usage) != 1 {
		t.Fatalf("Expected one usage request, got %d", len(usage))
	}
	if usage[0]["website"] != "github.com" || usage[0]["seconds"] != float64(120) {
		t.Errorf("Unexpected usage body: %v", usage[0])
	}
}

func TestSendReportsFailure(t *testing.T) {
	client, rec := setup(t, map[string]int{"/api/track": http.StatusInternalServerError})

	err := client.Send(context.Background(), storage.TimeSlice{Domain: "github.com", TimeSpent: 5})

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusInternalServerError || statusErr.Message != "store unavailable" {
		t.Errorf("Unexpected error: %+v", statusErr)
	}
	if len(rec.requests["POST /api/limits/usage"]) != 1 {
		t.Error("Expected usage increment to be attempted independently")
	}
}

func TestDeliverDoesNotRetry(t *testing.T) {
	client, rec := setup(t, map[string]int{"/api/track": http.StatusBadGateway, "/api/limits/usage": http.StatusBadGateway})

	done := make(chan error, 1)
	client.Deliver(storage.TimeSlice{Domain: "github.com", TimeSpent: 5}, func(err error) { done <- err })

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("Expected delivery to fail")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Delivery did not complete")
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if n := len(rec.requests["POST /api/track"]); n != 1 {
		t.Errorf("Expected exactly one track attempt, got %d", n)
	}
}

func TestDeliverUnreachable(t *testing.T) {
	client := New(Options{BaseURL: "http://127.0.0.1:1/api", Timeout: time.Second}, zerolog.Nop())

	done := make(chan error, 1)
	client.Deliver(storage.TimeSlice{Domain: "github.com", TimeSpent: 5}, func(err error) { done <- err })

	if err := <-done; err == nil {
		t.Error("Expected an error for an unreachable server")
	}
}

func TestStatus(t *testing.T) {
	client, _ := setup(t, nil)

	block, err := client.Status(context.Background(), "youtube.com")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if !block {
		t.Error("Expected youtube.com to be blocked")
	}
}
