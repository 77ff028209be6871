package storage

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// LimitType is the accounting window a limit applies to.
type LimitType string

const (
	LimitDaily  LimitType = "daily"
	LimitWeekly LimitType = "weekly"
)

// LimitTypes lists types in evaluation order.
var LimitTypes = []LimitType{LimitDaily, LimitWeekly}

// ParseLimitType validates s as a limit type.
func ParseLimitType(s string) (LimitType, error) {
	switch LimitType(strings.ToLower(s)) {
	case LimitDaily:
		return LimitDaily, nil
	case LimitWeekly:
		return LimitWeekly, nil
	default:
		return "", fmt.Errorf("invalid limit type: %s (must be daily or weekly)", s)
	}
}

// UnmarshalJSON implements json.Unmarshaler to normalize the type to lowercase.
func (t *LimitType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*t = ""
		return nil
	}
	parsed, err := ParseLimitType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// TimeSlice is one contiguous attributed interval reported by the client.
type TimeSlice struct {
	ID         string    `json:"id"`
	Domain     string    `json:"domain"`
	URL        string    `json:"url"`
	Productive bool      `json:"productive"`
	TimeSpent  int64     `json:"timeSpent"`
	Timestamp  time.Time `json:"timestamp"`
	Date       string    `json:"date"`
	Week       string    `json:"week"`
}

// Limit is a quota on time spent on a website per window.
type Limit struct {
	ID        string    `json:"id"`
	Website   string    `json:"website"`
	Minutes   int64     `json:"minutes"`
	Type      LimitType `json:"type"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Seconds returns the limit threshold in seconds.
func (l Limit) Seconds() int64 {
	return l.Minutes * 60
}

// UsageCounter is the running per-day total for a website.
type UsageCounter struct {
	Website string `json:"website"`
	Date    string `json:"date"`
	Seconds int64  `json:"seconds"`
}
