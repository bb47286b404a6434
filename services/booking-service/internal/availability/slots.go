package availability

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// DayLayout is the wire format of a calendar date.
const DayLayout = "2006-01-02"

// DefaultLayout renders slot starts as HH:MM.
const DefaultLayout = "15:04"

// Interval is half-open: [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether the two half-open intervals intersect. Touching endpoints do not.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && i.End.After(o.Start)
}

// BusinessHours is the daily window in which a slot may start. EndHour is exclusive.
type BusinessHours struct {
	StartHour int
	EndHour   int
}

type Config struct {
	Hours       BusinessHours
	SlotMinutes int
	Location    *time.Location
	Layout      string
}

func (c Config) validate() error {
	h := c.Hours
	switch {
	case h.StartHour < 0 || h.StartHour > 23 || h.EndHour < 0 || h.EndHour > 23:
		return fmt.Errorf("%w: business hours %d-%d outside [0,23]", ErrInvalidConfiguration, h.StartHour, h.EndHour)
	case h.StartHour >= h.EndHour:
		return fmt.Errorf("%w: start hour %d must be before end hour %d", ErrInvalidConfiguration, h.StartHour, h.EndHour)
	case c.SlotMinutes <= 0:
		return fmt.Errorf("%w: slot duration must be positive (got %d)", ErrInvalidConfiguration, c.SlotMinutes)
	case c.Location == nil:
		return fmt.Errorf("%w: location is required", ErrInvalidConfiguration)
	}
	return nil
}

// Engine computes free slots for one deployment configuration. It holds no mutable state
// and never reads the clock, so one Engine can serve any number of goroutines.
type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Layout) == "" {
		cfg.Layout = DefaultLayout
	}
	return &Engine{cfg: cfg}, nil
}

func (e *Engine) Config() Config { return e.cfg }

func (e *Engine) Location() *time.Location { return e.cfg.Location }

func (e *Engine) SlotDuration() time.Duration {
	return time.Duration(e.cfg.SlotMinutes) * time.Minute
}

// ParseDay parses YYYY-MM-DD as midnight in the business location.
func (e *Engine) ParseDay(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: date is required", ErrInvalidInput)
	}
	day, err := time.ParseInLocation(DayLayout, s, e.cfg.Location)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q: %v", ErrInvalidInput, s, err)
	}
	return day, nil
}

// Candidates returns the unfiltered grid for the date of day. Minute offsets restart at
// zero every hour, so a duration that does not divide 60 leaves a gap before each hour.
func (e *Engine) Candidates(day time.Time) []Interval {
	y, mo, d := day.In(e.cfg.Location).Date()
	step := e.cfg.SlotMinutes
	dur := e.SlotDuration()

	out := make([]Interval, 0, (e.cfg.Hours.EndHour-e.cfg.Hours.StartHour)*((59/step)+1))
	for h := e.cfg.Hours.StartHour; h < e.cfg.Hours.EndHour; h++ {
		for m := 0; m < 60; m += step {
			start := time.Date(y, mo, d, h, m, 0, 0, e.cfg.Location)
			out = append(out, Interval{Start: start, End: start.Add(dur)})
		}
	}
	return out
}

// FreeSlots returns candidate starts that are not before now and overlap no busy interval.
func (e *Engine) FreeSlots(day time.Time, busy []Interval, now time.Time) []time.Time {
	var slots []time.Time
	for _, c := range e.Candidates(day) {
		if c.Start.Before(now) {
			continue
		}
		if overlapsAny(c, busy) {
			continue
		}
		slots = append(slots, c.Start)
	}
	return slots
}

// AvailableSlots parses day, filters the grid and formats each start in the business location.
// The result is never nil.
func (e *Engine) AvailableSlots(day string, busy []Interval, now time.Time) ([]string, error) {
	d, err := e.ParseDay(day)
	if err != nil {
		return nil, err
	}
	free := e.FreeSlots(d, busy, now)
	out := make([]string, 0, len(free))
	for _, s := range free {
		out = append(out, s.In(e.cfg.Location).Format(e.cfg.Layout))
	}
	return out, nil
}

// ComputeAvailableSlots is the one-shot form of Engine.AvailableSlots.
func ComputeAvailableSlots(day string, hours BusinessHours, slotMinutes int, busy []Interval, now time.Time, loc *time.Location) ([]string, error) {
	e, err := NewEngine(Config{Hours: hours, SlotMinutes: slotMinutes, Location: loc})
	if err != nil {
		return nil, err
	}
	return e.AvailableSlots(day, busy, now)
}

func overlapsAny(slot Interval, busy []Interval) bool {
	for _, b := range busy {
		if slot.Overlaps(b) {
			return true
		}
	}
	return false
}
