package scheduling

import (
	"context"
	"reflect"
	"testing"
	"time"
)

func TestCalendarNormalize(t *testing.T) {
	cal := Calendar{
		"2024-06-01": {"14:00", "09:00", "09:00", "10:30"},
		"2024-06-02": {},
	}

	normalized, err := cal.Normalize()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := Calendar{"2024-06-01": {"09:00", "10:30", "14:00"}}
	if !reflect.DeepEqual(normalized, want) {
		t.Errorf("got %v, want %v", normalized, want)
	}
}

func TestCalendarNormalize_RejectsMalformedEntries(t *testing.T) {
	cases := []struct {
		name string
		cal  Calendar
	}{
		{"bad date", Calendar{"June 1st": {"09:00"}}},
		{"bad slot", Calendar{"2024-06-01": {"9am"}}},
		{"seconds in slot", Calendar{"2024-06-01": {"09:00:00"}}},
	}
	for _, tc := range cases {
		if _, err := tc.cal.Normalize(); err == nil {
			t.Errorf("%s: expected error, got nil", tc.name)
		}
	}
}

func TestCalendarAllows(t *testing.T) {
	cal := Calendar{"2024-06-01": {"09:00", "10:30"}}

	cases := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"published slot", time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC), true},
		{"off-calendar time on published day", time.Date(2024, 6, 1, 11, 0, 0, 0, time.UTC), false},
		{"unpublished day is open", time.Date(2024, 6, 2, 11, 0, 0, 0, time.UTC), true},
	}
	for _, tc := range cases {
		if got := cal.Allows(tc.at, time.UTC); got != tc.want {
			t.Errorf("%s: Allows(%v) = %v, want %v", tc.name, tc.at, got, tc.want)
		}
	}
}

func TestCalendarAllows_ConvertsToClinicTimezone(t *testing.T) {
	loc := time.FixedZone("clinic", 5*3600+1800) // UTC+05:30
	cal := Calendar{"2024-06-01": {"10:00"}}

	// 04:30 UTC is 10:00 clinic time on the same date.
	at := time.Date(2024, 6, 1, 4, 30, 0, 0, time.UTC)
	if !cal.Allows(at, loc) {
		t.Error("expected UTC instant to match clinic-local slot")
	}
	if cal.Allows(at, time.UTC) {
		t.Error("expected the same instant read as UTC to miss the slot")
	}
}

func TestFakeAvailabilityStore_ReplaceSemantics(t *testing.T) {
	store := newFakeAvailability()
	ctx := context.Background()

	if err := store.Set(ctx, 7, Calendar{"2024-06-01": {"09:00"}, "2024-06-02": {"10:00"}}); err != nil {
		t.Fatalf("first set failed: %v", err)
	}
	if err := store.Set(ctx, 7, Calendar{"2024-06-03": {"11:00"}}); err != nil {
		t.Fatalf("second set failed: %v", err)
	}

	cal, err := store.Get(ctx, 7, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	want := Calendar{"2024-06-03": {"11:00"}}
	if !reflect.DeepEqual(cal, want) {
		t.Errorf("set must replace, not merge: got %v, want %v", cal, want)
	}
}
