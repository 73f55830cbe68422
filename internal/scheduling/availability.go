package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"hospital-booking-server/internal/models"
)

const (
	// DateLayout keys the availability calendar.
	DateLayout = "2006-01-02"
	// SlotLayout formats a time-of-day slot.
	SlotLayout = "15:04"
)

// ErrDoctorNotFound is returned when an availability lookup targets an
// unknown doctor.
var ErrDoctorNotFound = errors.New("doctor not found")

// Calendar maps a calendar date to the doctor's open time-of-day slots.
type Calendar map[string][]string

// Normalize sorts slot lists and drops empty dates and malformed entries.
func (c Calendar) Normalize() (Calendar, error) {
	out := make(Calendar, len(c))
	for date, slots := range c {
		if _, err := time.Parse(DateLayout, date); err != nil {
			return nil, fmt.Errorf("invalid date %q: %w", date, err)
		}
		if len(slots) == 0 {
			continue
		}
		seen := make(map[string]bool, len(slots))
		var clean []string
		for _, slot := range slots {
			if _, err := time.Parse(SlotLayout, slot); err != nil {
				return nil, fmt.Errorf("invalid slot %q on %s: %w", slot, date, err)
			}
			if !seen[slot] {
				seen[slot] = true
				clean = append(clean, slot)
			}
		}
		sort.Strings(clean)
		out[date] = clean
	}
	return out, nil
}

// Allows reports whether t falls on an open slot. Days without a published
// entry are unconstrained: availability is advisory until the doctor
// declares slots for a date, after which only those slots may be booked.
func (c Calendar) Allows(t time.Time, loc *time.Location) bool {
	slots, published := c[t.In(loc).Format(DateLayout)]
	if !published {
		return true
	}
	want := t.In(loc).Format(SlotLayout)
	for _, slot := range slots {
		if slot == want {
			return true
		}
	}
	return false
}

// AvailabilityStore holds each doctor's sparse calendar of open slots.
type AvailabilityStore interface {
	// Get returns the calendar restricted to dates in [from, to). Zero
	// bounds mean unbounded.
	Get(ctx context.Context, doctorID uint, from, to time.Time) (Calendar, error)
	// Set replaces the doctor's whole calendar. Last write wins, no merge.
	Set(ctx context.Context, doctorID uint, cal Calendar) error
}

// GormAvailabilityStore persists calendars as a JSON document on the doctor row.
type GormAvailabilityStore struct {
	db  *gorm.DB
	loc *time.Location
}

// NewGormAvailabilityStore creates a store bound to db, interpreting dates
// in loc.
func NewGormAvailabilityStore(db *gorm.DB, loc *time.Location) *GormAvailabilityStore {
	return &GormAvailabilityStore{db: db, loc: loc}
}

func (s *GormAvailabilityStore) Get(ctx context.Context, doctorID uint, from, to time.Time) (Calendar, error) {
	var doctor models.Doctor
	if err := s.db.WithContext(ctx).First(&doctor, "id = ?", doctorID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}

	cal := Calendar{}
	if doctor.Availability != "" {
		if err := json.Unmarshal([]byte(doctor.Availability), &cal); err != nil {
			return nil, fmt.Errorf("corrupt availability for doctor %d: %w", doctorID, err)
		}
	}
	if from.IsZero() && to.IsZero() {
		return cal, nil
	}

	filtered := Calendar{}
	for date, slots := range cal {
		day, err := time.ParseInLocation(DateLayout, date, s.loc)
		if err != nil {
			continue
		}
		if !from.IsZero() && day.Before(from) {
			continue
		}
		if !to.IsZero() && !day.Before(to) {
			continue
		}
		filtered[date] = slots
	}
	return filtered, nil
}

func (s *GormAvailabilityStore) Set(ctx context.Context, doctorID uint, cal Calendar) error {
	normalized, err := cal.Normalize()
	if err != nil {
		return err
	}
	raw, err := json.Marshal(normalized)
	if err != nil {
		return err
	}
	result := s.db.WithContext(ctx).
		Model(&models.Doctor{}).
		Where("id = ?", doctorID).
		Update("availability", string(raw))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrDoctorNotFound
	}
	return nil
}
