package availability

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

func saoPaulo(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return loc
}

func newTestEngine(t *testing.T, start, end, minutes int, loc *time.Location) *Engine {
	t.Helper()
	e, err := NewEngine(Config{Hours: BusinessHours{StartHour: start, EndHour: end}, SlotMinutes: minutes, Location: loc})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return e
}

func TestNewEngine_RejectsBadConfig(t *testing.T) {
	cases := []Config{
		{Hours: BusinessHours{8, 18}, SlotMinutes: 0, Location: time.UTC},
		{Hours: BusinessHours{8, 18}, SlotMinutes: -15, Location: time.UTC},
		{Hours: BusinessHours{18, 8}, SlotMinutes: 60, Location: time.UTC},
		{Hours: BusinessHours{9, 9}, SlotMinutes: 60, Location: time.UTC},
		{Hours: BusinessHours{-1, 10}, SlotMinutes: 60, Location: time.UTC},
		{Hours: BusinessHours{8, 24}, SlotMinutes: 60, Location: time.UTC},
		{Hours: BusinessHours{8, 18}, SlotMinutes: 60, Location: nil},
	}
	for i, cfg := range cases {
		if _, err := NewEngine(cfg); !errors.Is(err, ErrInvalidConfiguration) {
			t.Fatalf("case %d: expected ErrInvalidConfiguration, got %v", i, err)
		}
	}
	if _, err := ComputeAvailableSlots("2025-07-01", BusinessHours{10, 9}, 60, nil, time.Time{}, time.UTC); !errors.Is(err, ErrInvalidConfiguration) {
		t.Fatalf("expected ErrInvalidConfiguration from free function, got %v", err)
	}
}

func TestNewEngine_DefaultLayout(t *testing.T) {
	e := newTestEngine(t, 8, 18, 60, time.UTC)
	if e.Config().Layout != DefaultLayout {
		t.Fatalf("layout = %q", e.Config().Layout)
	}
}

func TestParseDay(t *testing.T) {
	loc := saoPaulo(t)
	e := newTestEngine(t, 8, 18, 60, loc)

	for _, in := range []string{"", "   ", "2025/07/01", "2025-13-01", "2025-02-30", "tomorrow"} {
		if _, err := e.ParseDay(in); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("ParseDay(%q): expected ErrInvalidInput, got %v", in, err)
		}
	}

	day, err := e.ParseDay("2025-07-01")
	if err != nil {
		t.Fatalf("ParseDay: %v", err)
	}
	if !day.Equal(time.Date(2025, 7, 1, 0, 0, 0, 0, loc)) {
		t.Fatalf("unexpected day %s", day)
	}
}

func TestCandidates_GridSize(t *testing.T) {
	day := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	for _, tc := range []struct{ start, end, d int }{
		{8, 18, 60}, {8, 18, 30}, {0, 23, 15}, {9, 10, 20}, {13, 17, 5}, {0, 1, 1},
	} {
		e := newTestEngine(t, tc.start, tc.end, tc.d, time.UTC)
		got := len(e.Candidates(day))
		want := (tc.end - tc.start) * (60 / tc.d)
		if got != want {
			t.Fatalf("hours %d-%d step %d: got %d candidates, want %d", tc.start, tc.end, tc.d, got, want)
		}
	}
}

func TestCandidates_AscendingAndAligned(t *testing.T) {
	loc := saoPaulo(t)
	e := newTestEngine(t, 8, 12, 30, loc)
	day := time.Date(2025, 7, 1, 15, 0, 0, 0, time.UTC) // any instant on the date works
	c := e.Candidates(day)
	for i, iv := range c {
		if iv.End.Sub(iv.Start) != 30*time.Minute {
			t.Fatalf("candidate %d has length %s", i, iv.End.Sub(iv.Start))
		}
		if iv.Start.Location() != loc {
			t.Fatalf("candidate %d not in business location", i)
		}
		if i > 0 && !c[i-1].Start.Before(iv.Start) {
			t.Fatalf("candidates not ascending at %d", i)
		}
	}
	if got := c[0].Start.Format("2006-01-02 15:04"); got != "2025-07-01 08:00" {
		t.Fatalf("first candidate %s", got)
	}
}

func TestCandidates_PerHourReset(t *testing.T) {
	e := newTestEngine(t, 8, 10, 45, time.UTC)
	got, err := e.AvailableSlots("2025-07-01", nil, time.Time{})
	if err != nil {
		t.Fatalf("AvailableSlots: %v", err)
	}
	// 08:45 is followed by 09:00, not 09:30: minutes restart each hour.
	want := []string{"08:00", "08:45", "09:00", "09:45"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestScenarioA_NoBusy(t *testing.T) {
	loc := saoPaulo(t)
	e := newTestEngine(t, 8, 18, 60, loc)
	now := time.Date(2025, 7, 1, 7, 0, 0, 0, loc)

	got, err := e.AvailableSlots("2025-07-01", nil, now)
	if err != nil {
		t.Fatalf("AvailableSlots: %v", err)
	}
	want := []string{"08:00", "09:00", "10:00", "11:00", "12:00", "13:00", "14:00", "15:00", "16:00", "17:00"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestScenarioB_OneBusyHour(t *testing.T) {
	loc := saoPaulo(t)
	e := newTestEngine(t, 8, 18, 60, loc)
	now := time.Date(2025, 7, 1, 7, 0, 0, 0, loc)
	busy := []Interval{{
		Start: time.Date(2025, 7, 1, 9, 0, 0, 0, loc),
		End:   time.Date(2025, 7, 1, 10, 0, 0, 0, loc),
	}}

	got, err := e.AvailableSlots("2025-07-01", busy, now)
	if err != nil {
		t.Fatalf("AvailableSlots: %v", err)
	}
	if len(got) != 9 {
		t.Fatalf("expected 9 slots, got %v", got)
	}
	for _, s := range got {
		if s == "09:00" {
			t.Fatalf("09:00 should be busy: %v", got)
		}
	}
	// Scenario E: neighbours of an exactly matching busy interval stay free.
	if got[0] != "08:00" || got[1] != "10:00" {
		t.Fatalf("neighbours of busy slot missing: %v", got)
	}
}

func TestScenarioC_PastFilter(t *testing.T) {
	loc := saoPaulo(t)
	e := newTestEngine(t, 8, 18, 60, loc)
	now := time.Date(2025, 7, 1, 14, 30, 0, 0, loc)

	got, err := e.AvailableSlots("2025-07-01", nil, now)
	if err != nil {
		t.Fatalf("AvailableSlots: %v", err)
	}
	want := []string{"15:00", "16:00", "17:00"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestPastFilter_IndependentOfNowZone(t *testing.T) {
	loc := saoPaulo(t)
	e := newTestEngine(t, 8, 18, 60, loc)
	local := time.Date(2025, 7, 1, 14, 30, 0, 0, loc)
	tokyo := time.FixedZone("JST", 9*3600)

	a, _ := e.AvailableSlots("2025-07-01", nil, local)
	b, _ := e.AvailableSlots("2025-07-01", nil, local.UTC())
	c, _ := e.AvailableSlots("2025-07-01", nil, local.In(tokyo))
	if !reflect.DeepEqual(a, b) || !reflect.DeepEqual(a, c) {
		t.Fatalf("results depend on now's zone: %v %v %v", a, b, c)
	}
}

func TestPastFilter_SlotStartingAtNowIsKept(t *testing.T) {
	e := newTestEngine(t, 8, 18, 60, time.UTC)
	now := time.Date(2025, 7, 1, 15, 0, 0, 0, time.UTC)
	got, _ := e.AvailableSlots("2025-07-01", nil, now)
	if len(got) == 0 || got[0] != "15:00" {
		t.Fatalf("slot starting exactly at now should be kept: %v", got)
	}
}

func TestOverlapBoundaries(t *testing.T) {
	e := newTestEngine(t, 8, 12, 60, time.UTC)
	at := func(h, m int) time.Time { return time.Date(2025, 7, 1, h, m, 0, 0, time.UTC) }

	cases := []struct {
		name string
		busy Interval
		want []string
	}{
		{"ends at slot start", Interval{at(7, 0), at(8, 0)}, []string{"08:00", "09:00", "10:00", "11:00"}},
		{"starts at slot end", Interval{at(12, 0), at(13, 0)}, []string{"08:00", "09:00", "10:00", "11:00"}},
		{"exact slot", Interval{at(9, 0), at(10, 0)}, []string{"08:00", "10:00", "11:00"}},
		{"straddles two slots", Interval{at(9, 30), at(10, 30)}, []string{"08:00", "11:00"}},
		{"inside one slot", Interval{at(10, 15), at(10, 20)}, []string{"08:00", "09:00", "11:00"}},
		{"covers everything", Interval{at(0, 0), at(23, 0)}, []string{}},
	}
	for _, tc := range cases {
		got, err := e.AvailableSlots("2025-07-01", []Interval{tc.busy}, time.Time{})
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}
}

func TestBusyInOtherZone(t *testing.T) {
	loc := saoPaulo(t)
	e := newTestEngine(t, 8, 18, 60, loc)
	// 12:00-13:00 UTC is 09:00-10:00 in Sao Paulo (UTC-3).
	busy := []Interval{{
		Start: time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 7, 1, 13, 0, 0, 0, time.UTC),
	}}
	got, _ := e.AvailableSlots("2025-07-01", busy, time.Time{})
	if strings.Contains(strings.Join(got, ","), "09:00") {
		t.Fatalf("09:00 local should be blocked: %v", got)
	}
	if len(got) != 9 {
		t.Fatalf("expected 9 slots, got %v", got)
	}
}

func TestIdempotent(t *testing.T) {
	loc := saoPaulo(t)
	e := newTestEngine(t, 8, 18, 30, loc)
	busy := []Interval{{
		Start: time.Date(2025, 7, 1, 11, 0, 0, 0, loc),
		End:   time.Date(2025, 7, 1, 12, 15, 0, 0, loc),
	}}
	now := time.Date(2025, 7, 1, 9, 10, 0, 0, loc)

	a, _ := e.AvailableSlots("2025-07-01", busy, now)
	b, _ := e.AvailableSlots("2025-07-01", busy, now)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("not idempotent: %v vs %v", a, b)
	}
}

func TestAvailableSlots_NeverNil(t *testing.T) {
	e := newTestEngine(t, 8, 18, 60, time.UTC)
	got, err := e.AvailableSlots("2025-07-01", nil, time.Date(2025, 7, 2, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("AvailableSlots: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestAvailableSlots_InvalidDay(t *testing.T) {
	e := newTestEngine(t, 8, 18, 60, time.UTC)
	if _, err := e.AvailableSlots("", nil, time.Time{}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestComputeAvailableSlots(t *testing.T) {
	got, err := ComputeAvailableSlots("2025-07-01", BusinessHours{StartHour: 16, EndHour: 18}, 60, nil, time.Time{}, time.UTC)
	if err != nil {
		t.Fatalf("ComputeAvailableSlots: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"16:00", "17:00"}) {
		t.Fatalf("got %v", got)
	}
}
