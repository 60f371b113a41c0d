package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// DefaultMaxUsagesPerDay applies when the backend omits the daily limit
const DefaultMaxUsagesPerDay = 5

// Subscription is the cached "my active subscription"
type Subscription struct {
	ID              string    `json:"id"`
	PlanName        string    `json:"planName"`
	StartDate       time.Time `json:"startDate"`
	EndDate         time.Time `json:"endDate"`
	IsActive        bool      `json:"isActive"`
	MaxUsagesPerDay int       `json:"maxUsagesPerDay"`
}

// UnmarshalJSON accepts both the plan entity shape (name) and the
// subscription shape (planName), and date-only timestamps.
func (s *Subscription) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID              string `json:"id"`
		PlanName        string `json:"planName"`
		Name            string `json:"name"`
		StartDate       string `json:"startDate"`
		EndDate         string `json:"endDate"`
		IsActive        *bool  `json:"isActive"`
		MaxUsagesPerDay int    `json:"maxUsagesPerDay"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	start, err := ParseTime(raw.StartDate)
	if err != nil {
		return fmt.Errorf("startDate: %w", err)
	}
	end, err := ParseTime(raw.EndDate)
	if err != nil {
		return fmt.Errorf("endDate: %w", err)
	}

	*s = Subscription{
		ID:              raw.ID,
		PlanName:        raw.PlanName,
		StartDate:       start,
		EndDate:         end,
		IsActive:        true,
		MaxUsagesPerDay: raw.MaxUsagesPerDay,
	}
	if s.PlanName == "" {
		s.PlanName = raw.Name
	}
	if s.PlanName == "" {
		s.PlanName = "Subscription"
	}
	if raw.IsActive != nil {
		s.IsActive = *raw.IsActive
	}
	if s.MaxUsagesPerDay <= 0 {
		s.MaxUsagesPerDay = DefaultMaxUsagesPerDay
	}
	return nil
}

// Active reports startDate <= now <= endDate
func (s *Subscription) Active(now time.Time) bool {
	return !now.Before(s.StartDate) && !now.After(s.EndDate)
}

// DaysLeft rounds the remaining time up to whole days
func (s *Subscription) DaysLeft(now time.Time) int {
	return int(math.Ceil(s.EndDate.Sub(now).Hours() / 24))
}

// ExpiryLabel is the short "time until expiry" text shown next to the plan
func (s *Subscription) ExpiryLabel(now time.Time) string {
	days := s.DaysLeft(now)
	switch {
	case days <= 0:
		return "Subscription expired"
	case days == 1:
		return "Expires today"
	default:
		return fmt.Sprintf("%d days", days)
	}
}

// Plan is a purchasable subscription plan
type Plan struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	Price           string          `json:"price"`
	DurationDays    int             `json:"durationDays"`
	Features        []string        `json:"features"`
	IsActive        bool            `json:"isActive"`
	MaxUsagesPerDay int             `json:"maxUsagesPerDay"`
	Discount        json.RawMessage `json:"discount,omitempty"`
}

var timeLayouts = []struct {
	layout string
	loc    *time.Location
}{
	{time.RFC3339Nano, nil},
	{"2006-01-02T15:04:05.999999999", time.Local},
	{"2006-01-02 15:04:05", time.Local},
	{"2006-01-02", time.UTC},
}

// ParseTime parses the timestamp formats the backend emits. Date-times
// without a zone are read in local time, bare dates as UTC midnight. An
// empty string yields the zero time.
func ParseTime(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, nil
	}
	for _, l := range timeLayouts {
		var (
			t   time.Time
			err error
		)
		if l.loc == nil {
			t, err = time.Parse(l.layout, v)
		} else {
			t, err = time.ParseInLocation(l.layout, v, l.loc)
		}
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", v)
}
