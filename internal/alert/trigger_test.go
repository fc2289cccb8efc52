package alert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezkam/pantry/internal/domain"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func at9(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 9, 0, 0, 0, time.UTC)
}

func TestTriggerTime(t *testing.T) {
	cfg := DefaultConfig()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	exp := domain.ExpiresOn(date(2026, 6, 20))

	tests := []struct {
		name       string
		expiration domain.Expiration
		option     domain.AlertOption
		want       time.Time
		wantOK     bool
	}{
		{"no alert", exp, domain.NoAlert(), time.Time{}, false},
		{"zero value alert", exp, domain.AlertOption{}, time.Time{}, false},
		{"on day of", exp, domain.OnDayOf(), at9(2026, 6, 20), true},
		{"days before", exp, domain.DaysBefore(3), at9(2026, 6, 17), true},
		{"weeks before", exp, domain.WeeksBefore(2), at9(2026, 6, 6), true},
		{"months before crosses month", domain.ExpiresOn(date(2026, 7, 15)), domain.MonthsBefore(1), at9(2026, 6, 15), true},
		{"custom date", exp, domain.CustomDate(date(2026, 6, 10)), at9(2026, 6, 10), true},
		{"custom date without expiration", domain.NoExpiration(), domain.CustomDate(date(2026, 6, 10)), at9(2026, 6, 10), true},
		{"no expiration suppresses relative option", domain.NoExpiration(), domain.DaysBefore(3), time.Time{}, false},
		{"computed instant in the past", domain.ExpiresOn(date(2026, 5, 20)), domain.OnDayOf(), time.Time{}, false},
		{"days before lands in the past", domain.ExpiresOn(date(2026, 6, 3)), domain.DaysBefore(5), time.Time{}, false},
		{"custom date in the past", exp, domain.CustomDate(date(2026, 5, 1)), time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := TriggerTime(tt.expiration, tt.option, now, cfg)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.True(t, tt.want.Equal(got), "want %v, got %v", tt.want, got)
			}
		})
	}
}

func TestTriggerTime_NotStrictlyFuture(t *testing.T) {
	cfg := DefaultConfig()
	exp := domain.ExpiresOn(date(2026, 6, 20))

	// now exactly at the trigger instant: not strictly after, so invalid.
	now := at9(2026, 6, 20)
	_, ok := TriggerTime(exp, domain.OnDayOf(), now, cfg)
	assert.False(t, ok)

	// One second earlier it is valid.
	_, ok = TriggerTime(exp, domain.OnDayOf(), now.Add(-time.Second), cfg)
	assert.True(t, ok)
}

func TestTriggerTime_FixedHourIgnoresEntryTime(t *testing.T) {
	cfg := DefaultConfig()
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	// The expiration carries a late wall-clock time; the trigger still
	// normalizes to the fixed hour on that day.
	exp := domain.ExpiresOn(time.Date(2026, 6, 20, 23, 45, 0, 0, time.UTC))
	got, ok := TriggerTime(exp, domain.OnDayOf(), now, cfg)
	require.True(t, ok)
	assert.True(t, at9(2026, 6, 20).Equal(got))
}

func TestTriggerTime_CustomLocation(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	cfg := Config{Hour: 9, Location: loc}

	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	exp := domain.ExpiresOn(date(2026, 6, 20))

	got, ok := TriggerTime(exp, domain.OnDayOf(), now, cfg)
	require.True(t, ok)
	// 2026-06-19 in UTC is still 2026-06-19 in New York at midnight UTC
	// minus 4h; the expiration date converts to its New York calendar day.
	assert.Equal(t, 9, got.Hour())
	assert.Equal(t, loc.String(), got.Location().String())
}

// Scenario: item expiring in 10 days with a 3-days-before alert schedules
// at expiration minus three days at the fixed hour.
func TestApply_FutureTrigger(t *testing.T) {
	cfg := DefaultConfig()
	now := time.Date(2026, 6, 1, 15, 0, 0, 0, time.UTC)

	item, err := domain.NewItem("list-1", "Yogurt", "", domain.ExpiresOn(date(2026, 6, 11)))
	require.NoError(t, err)

	item = Apply(item, domain.DaysBefore(3), now, cfg)
	assert.Equal(t, domain.AlertDaysBefore, item.Alert.Kind)

	trigger, ok := TriggerTime(item.Expiration, item.Alert, now, cfg)
	require.True(t, ok)
	assert.True(t, at9(2026, 6, 8).Equal(trigger))
}

// Scenario: item that expired yesterday with an on-day-of alert collapses
// to none.
func TestApply_PastTriggerCollapsesToNone(t *testing.T) {
	cfg := DefaultConfig()
	now := time.Date(2026, 6, 2, 8, 0, 0, 0, time.UTC)

	item, err := domain.NewItem("list-1", "Milk", "", domain.ExpiresOn(date(2026, 6, 1)))
	require.NoError(t, err)

	item = Apply(item, domain.OnDayOf(), now, cfg)
	assert.True(t, item.Alert.IsNone())
}

func TestApply_Idempotent(t *testing.T) {
	cfg := DefaultConfig()
	now := time.Date(2026, 6, 1, 15, 0, 0, 0, time.UTC)

	item, err := domain.NewItem("list-1", "Eggs", "", domain.ExpiresOn(date(2026, 6, 11)))
	require.NoError(t, err)

	once := Apply(item, domain.DaysBefore(3), now, cfg)
	twice := Apply(once, once.Alert, now, cfg)
	assert.True(t, once.Equal(twice))

	// Stale option stays collapsed under repeated application.
	stale := Apply(item, domain.CustomDate(date(2026, 1, 1)), now, cfg)
	assert.True(t, stale.Alert.IsNone())
	assert.True(t, stale.Equal(Normalize(stale, now, cfg)))
}

func TestApply_NoExpiration(t *testing.T) {
	cfg := DefaultConfig()
	now := time.Date(2026, 6, 1, 15, 0, 0, 0, time.UTC)

	item, err := domain.NewItem("list-1", "Salt", "", domain.NoExpiration())
	require.NoError(t, err)

	// Relative options have nothing to anchor on.
	item = Apply(item, domain.WeeksBefore(1), now, cfg)
	assert.True(t, item.Alert.IsNone())

	// A future custom date works without an expiration.
	item = Apply(item, domain.CustomDate(date(2026, 7, 1)), now, cfg)
	assert.Equal(t, domain.AlertCustomDate, item.Alert.Kind)
}
