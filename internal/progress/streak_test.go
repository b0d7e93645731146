package progress

import (
	"testing"
	"time"
)

func TestNextStreak(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)
	day := func(d int, hour int) *time.Time {
		v := time.Date(2026, 3, d, hour, 0, 0, 0, time.UTC)
		return &v
	}

	tests := []struct {
		name     string
		current  int
		last     *time.Time
		want     int
		wantDate time.Time
	}{
		{name: "first ever login", current: 0, last: nil, want: 1, wantDate: *day(10, 0)},
		{name: "first login ignores stale count", current: 9, last: nil, want: 1, wantDate: *day(10, 0)},
		{name: "same day earlier", current: 4, last: day(10, 1), want: 4, wantDate: *day(10, 0)},
		{name: "next day", current: 4, last: day(9, 23), want: 5, wantDate: *day(10, 0)},
		{name: "two day gap", current: 4, last: day(8, 12), want: 1, wantDate: *day(10, 0)},
		{name: "long gap", current: 12, last: day(1, 12), want: 1, wantDate: *day(10, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, date := NextStreak(tt.current, tt.last, now, time.UTC)
			if got != tt.want {
				t.Errorf("streak = %d, want %d", got, tt.want)
			}
			if !date.Equal(tt.wantDate) {
				t.Errorf("date = %v, want %v", date, tt.wantDate)
			}
		})
	}
}

func TestNextStreakUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+7", 7*3600)
	// 18:00 UTC on the 9th is already the 10th in UTC+7.
	last := time.Date(2026, 3, 9, 1, 0, 0, 0, time.UTC)
	now := time.Date(2026, 3, 9, 18, 0, 0, 0, time.UTC)

	got, _ := NextStreak(2, &last, now, loc)
	if got != 3 {
		t.Fatalf("streak = %d, want 3", got)
	}
	got, _ = NextStreak(2, &last, now, time.UTC)
	if got != 2 {
		t.Fatalf("streak in UTC = %d, want 2", got)
	}
}
