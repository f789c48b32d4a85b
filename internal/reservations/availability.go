package reservations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrBadSlot is returned when a date or time cannot be parsed.
var ErrBadSlot = errors.New("invalid date or time")

// Policy describes opening hours and per-slot capacity.
type Policy struct {
	Capacity  int
	OpenHour  int
	CloseHour int
	// Window is the half-width of the slot around the requested time.
	Window   time.Duration
	Location *time.Location
}

// DefaultPolicy is 50 people per ±30 minutes, open 12:00 to 23:00 UTC.
func DefaultPolicy() Policy {
	return Policy{Capacity: 50, OpenHour: 12, CloseHour: 23, Window: 30 * time.Minute, Location: time.UTC}
}

func (p Policy) hours() string {
	day := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	open := day.Add(time.Duration(p.OpenHour) * time.Hour).Format("3:04 PM")
	closing := day.Add(time.Duration(p.CloseHour) * time.Hour).Format("3:04 PM")
	return open + " - " + closing
}

// Availability is the answer for one requested slot. Reason is set when
// Available is false, Message otherwise.
type Availability struct {
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
	Message   string `json:"message,omitempty"`
	// Reserved is the number of people already booked in the slot.
	Reserved int `json:"-"`
}

// Checker answers availability questions against a reservations repository.
type Checker struct {
	repo    Repository
	policy  Policy
	nowFunc func() time.Time
}

func NewChecker(repo Repository, policy Policy) *Checker {
	if policy.Location == nil {
		policy.Location = time.UTC
	}
	return &Checker{repo: repo, policy: policy, nowFunc: time.Now}
}

// Location is the restaurant timezone used to read dates and times.
func (c *Checker) Location() *time.Location { return c.policy.Location }

// SlotTime combines a YYYY-MM-DD date and an HH:MM or HH:MM:SS time in loc.
func SlotTime(date, clock string, loc *time.Location) (time.Time, error) {
	date, clock = strings.TrimSpace(date), strings.TrimSpace(clock)
	layout := "2006-01-02 15:04:05"
	if strings.Count(clock, ":") == 1 {
		layout = "2006-01-02 15:04"
	}
	t, err := time.ParseInLocation(layout, date+" "+clock, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q %q", ErrBadSlot, date, clock)
	}
	return t, nil
}

// Check reports whether people can be seated at date+clock.
func (c *Checker) Check(ctx context.Context, date, clock string, people int) (Availability, error) {
	at, err := SlotTime(date, clock, c.policy.Location)
	if err != nil {
		return Availability{}, err
	}
	if at.Before(c.nowFunc()) {
		return Availability{Reason: "Cannot make reservations in the past"}, nil
	}
	if h := at.Hour(); h < c.policy.OpenHour || h >= c.policy.CloseHour {
		return Availability{Reason: "Restaurant is closed. Hours: " + c.policy.hours()}, nil
	}

	booked, err := c.repo.ListBetween(ctx, at.Add(-c.policy.Window), at.Add(c.policy.Window), StatusPending, StatusConfirmed)
	if err != nil {
		return Availability{}, fmt.Errorf("list slot reservations: %w", err)
	}
	total := 0
	for _, r := range booked {
		total += r.NumberOfPeople
	}
	if total+people > c.policy.Capacity {
		return Availability{
			Reserved: total,
			Reason: fmt.Sprintf("Not enough capacity. Maximum %d people per time slot. Currently %d people reserved.",
				c.policy.Capacity, total),
		}, nil
	}
	return Availability{Available: true, Reserved: total, Message: "Reservation slot available"}, nil
}
