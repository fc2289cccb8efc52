// Package alert derives future-dated local alerts from item state. The
// trigger computation is pure; the Scheduler keeps the installed triggers
// in sync with the event stream.
package alert

import (
	"time"

	"github.com/rezkam/pantry/internal/domain"
)

// Config fixes the hour-of-day and time zone alerts fire at, so "the day
// of expiration" means the same instant regardless of when the item was
// entered.
type Config struct {
	Hour     int
	Location *time.Location
}

// DefaultConfig returns the standard 09:00 UTC alert time.
func DefaultConfig() Config {
	return Config{Hour: 9, Location: time.UTC}
}

func (c Config) location() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

// atFixedHour normalizes t to the configured hour on the same calendar day.
func (c Config) atFixedHour(t time.Time) time.Time {
	t = t.In(c.location())
	return time.Date(t.Year(), t.Month(), t.Day(), c.Hour, 0, 0, 0, c.location())
}

// TriggerTime computes the instant an alert should fire for the given
// expiration and alert option. The second return is false when no valid
// trigger exists: no alert configured, no expiration to anchor a relative
// option, or a computed instant not strictly after now.
func TriggerTime(expiration domain.Expiration, option domain.AlertOption, now time.Time, cfg Config) (time.Time, bool) {
	if option.IsNone() {
		return time.Time{}, false
	}

	expDate, hasExp := expiration.Date()

	var trigger time.Time
	switch option.Kind {
	case domain.AlertOnDayOf:
		if !hasExp {
			return time.Time{}, false
		}
		trigger = cfg.atFixedHour(expDate)
	case domain.AlertDaysBefore:
		if !hasExp {
			return time.Time{}, false
		}
		trigger = cfg.atFixedHour(expDate.AddDate(0, 0, -option.Count))
	case domain.AlertWeeksBefore:
		if !hasExp {
			return time.Time{}, false
		}
		trigger = cfg.atFixedHour(expDate.AddDate(0, 0, -7*option.Count))
	case domain.AlertMonthsBefore:
		if !hasExp {
			return time.Time{}, false
		}
		trigger = cfg.atFixedHour(expDate.AddDate(0, -option.Count, 0))
	case domain.AlertCustomDate:
		// Anchored on its own date, an expiration is not required.
		trigger = cfg.atFixedHour(option.Custom)
	default:
		return time.Time{}, false
	}

	if !trigger.After(now) {
		return time.Time{}, false
	}
	return trigger, true
}

// Apply attaches the alert option to the item, collapsing it to "none"
// when the computed trigger would not be strictly in the future. Applying
// the same option twice yields the same result.
func Apply(item domain.Item, option domain.AlertOption, now time.Time, cfg Config) domain.Item {
	if _, ok := TriggerTime(item.Expiration, option, now, cfg); !ok {
		item.Alert = domain.NoAlert()
		return item
	}
	item.Alert = option
	return item
}

// Normalize re-validates the item's current alert option against now,
// collapsing stale alerts to "none". Idempotent.
func Normalize(item domain.Item, now time.Time, cfg Config) domain.Item {
	return Apply(item, item.Alert, now, cfg)
}
