package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Expiration is an optional expiration date. The zero value means the item
// does not expire.
type Expiration struct {
	set  bool
	date time.Time
}

// NoExpiration returns the unset expiration.
func NoExpiration() Expiration { return Expiration{} }

// ExpiresOn returns an expiration on the given date.
func ExpiresOn(t time.Time) Expiration {
	return Expiration{set: true, date: t.UTC()}
}

// Date returns the expiration date and whether one is set.
func (e Expiration) Date() (time.Time, bool) { return e.date, e.set }

// IsSet reports whether an expiration date is present.
func (e Expiration) IsSet() bool { return e.set }

// Equal reports whether two expirations are the same instant (or both unset).
func (e Expiration) Equal(other Expiration) bool {
	if e.set != other.set {
		return false
	}
	return !e.set || e.date.Equal(other.date)
}

func (e Expiration) MarshalJSON() ([]byte, error) {
	if !e.set {
		return []byte("null"), nil
	}
	return json.Marshal(e.date)
}

func (e *Expiration) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*e = Expiration{}
		return nil
	}
	var t time.Time
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	*e = ExpiresOn(t)
	return nil
}

// AlertKind discriminates the alert option variants.
type AlertKind string

// AlertKind values.
const (
	AlertNone         AlertKind = "none"
	AlertOnDayOf      AlertKind = "on_day_of"
	AlertDaysBefore   AlertKind = "days_before"
	AlertWeeksBefore  AlertKind = "weeks_before"
	AlertMonthsBefore AlertKind = "months_before"
	AlertCustomDate   AlertKind = "custom_date"
)

// NewAlertKind validates and creates an AlertKind.
func NewAlertKind(s string) (AlertKind, error) {
	kind := AlertKind(s)
	switch kind {
	case AlertNone, AlertOnDayOf, AlertDaysBefore, AlertWeeksBefore,
		AlertMonthsBefore, AlertCustomDate:
		return kind, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidAlertKind, s)
	}
}

// AlertOption describes when an item should raise a local alert relative to
// its expiration. The zero value is "no alert".
type AlertOption struct {
	Kind   AlertKind `json:"kind"`
	Count  int       `json:"count,omitempty"`
	Custom time.Time `json:"custom,omitempty"`
}

// NoAlert returns the "no alert" option.
func NoAlert() AlertOption { return AlertOption{Kind: AlertNone} }

// OnDayOf alerts on the expiration day itself.
func OnDayOf() AlertOption { return AlertOption{Kind: AlertOnDayOf} }

// DaysBefore alerts n days before expiration.
func DaysBefore(n int) AlertOption {
	return AlertOption{Kind: AlertDaysBefore, Count: n}
}

// WeeksBefore alerts n weeks before expiration.
func WeeksBefore(n int) AlertOption {
	return AlertOption{Kind: AlertWeeksBefore, Count: n}
}

// MonthsBefore alerts n calendar months before expiration.
func MonthsBefore(n int) AlertOption {
	return AlertOption{Kind: AlertMonthsBefore, Count: n}
}

// CustomDate alerts on the given date, independent of expiration.
func CustomDate(t time.Time) AlertOption {
	return AlertOption{Kind: AlertCustomDate, Custom: t.UTC()}
}

// IsNone reports whether no alert is configured. The zero value counts as
// none so records decoded without an alert field behave correctly.
func (a AlertOption) IsNone() bool {
	return a.Kind == AlertNone || a.Kind == ""
}

// Equal reports whether two alert options are identical.
func (a AlertOption) Equal(other AlertOption) bool {
	if a.IsNone() && other.IsNone() {
		return true
	}
	return a.Kind == other.Kind && a.Count == other.Count && a.Custom.Equal(other.Custom)
}
