package services

import (
	"testing"
	"time"
)

func TestDayBoundaries(t *testing.T) {
	at := time.Date(2024, 5, 15, 23, 59, 59, 0, time.UTC)
	if got, want := DayStart(at), time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("DayStart() = %v, want %v", got, want)
	}
	if got, want := NextDayStart(at), time.Date(2024, 5, 16, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("NextDayStart() = %v, want %v", got, want)
	}

	// a non-UTC instant is placed on its UTC calendar day
	tokyo := time.FixedZone("JST", 9*3600)
	local := time.Date(2024, 5, 16, 8, 0, 0, 0, tokyo)
	if got, want := DayStart(local), time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("DayStart(JST) = %v, want %v", got, want)
	}
}

func TestDaysBetween(t *testing.T) {
	base := time.Date(2024, 5, 15, 23, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		b    time.Time
		want int
	}{
		{"same day", base.Add(30 * time.Minute), 0},
		{"across midnight", base.Add(2 * time.Hour), 1},
		{"two days", base.Add(26 * time.Hour), 2},
		{"earlier", base.Add(-24 * time.Hour), -1},
		{"month end", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), 17},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DaysBetween(base, tt.b); got != tt.want {
				t.Errorf("DaysBetween() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestWeekStart(t *testing.T) {
	tests := []struct {
		name    string
		at      time.Time
		weekday time.Weekday
		hour    int
		want    time.Time
	}{
		{
			name:    "wednesday with monday reset",
			at:      time.Date(2024, 5, 15, 9, 0, 0, 0, time.UTC),
			weekday: time.Monday,
			want:    time.Date(2024, 5, 13, 0, 0, 0, 0, time.UTC),
		},
		{
			name:    "exactly at reset",
			at:      time.Date(2024, 5, 13, 0, 0, 0, 0, time.UTC),
			weekday: time.Monday,
			want:    time.Date(2024, 5, 13, 0, 0, 0, 0, time.UTC),
		},
		{
			name:    "reset day before reset hour",
			at:      time.Date(2024, 5, 13, 5, 0, 0, 0, time.UTC),
			weekday: time.Monday,
			hour:    6,
			want:    time.Date(2024, 5, 6, 6, 0, 0, 0, time.UTC),
		},
		{
			name:    "sunday with monday reset",
			at:      time.Date(2024, 5, 19, 23, 59, 0, 0, time.UTC),
			weekday: time.Monday,
			want:    time.Date(2024, 5, 13, 0, 0, 0, 0, time.UTC),
		},
		{
			name:    "saturday reset",
			at:      time.Date(2024, 5, 15, 9, 0, 0, 0, time.UTC),
			weekday: time.Saturday,
			hour:    12,
			want:    time.Date(2024, 5, 11, 12, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WeekStart(tt.at, tt.weekday, tt.hour)
			if !got.Equal(tt.want) {
				t.Errorf("WeekStart() = %v, want %v", got, tt.want)
			}
			if next := NextWeekStart(tt.at, tt.weekday, tt.hour); !next.Equal(tt.want.AddDate(0, 0, 7)) {
				t.Errorf("NextWeekStart() = %v", next)
			}
		})
	}
}
