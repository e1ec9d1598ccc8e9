package model

import (
	"testing"
	"time"
)

func TestTheaterTargetDue(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	hoursAgo := func(h int) *time.Time {
		at := now.Add(-time.Duration(h) * time.Hour)
		return &at
	}

	cases := []struct {
		name   string
		target TheaterTarget
		want   bool
	}{
		{name: "never scraped", target: TheaterTarget{}, want: true},
		{name: "stale by default frequency", target: TheaterTarget{LastScrapedAt: hoursAgo(7)}, want: true},
		{name: "fresh by default frequency", target: TheaterTarget{LastScrapedAt: hoursAgo(2)}, want: false},
		{name: "own frequency overrides default", target: TheaterTarget{LastScrapedAt: hoursAgo(2), ScrapeFrequencyMin: 60}, want: true},
		{name: "own frequency keeps it fresh", target: TheaterTarget{LastScrapedAt: hoursAgo(2), ScrapeFrequencyMin: 240}, want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.target.Due(now, 6*time.Hour); got != tc.want {
				t.Errorf("Due() = %v, want %v", got, tc.want)
			}
		})
	}
}
