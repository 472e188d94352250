package queue

import (
	"testing"
	"time"
)

func TestParseSchedule_Every(t *testing.T) {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		expr string
		want time.Duration
	}{
		{"every 24 hours", 24 * time.Hour},
		{"every 1 hour", time.Hour},
		{"  Every 30 Minutes ", 30 * time.Minute},
		{"every 2 days", 48 * time.Hour},
		{"every 1 week", 7 * 24 * time.Hour},
		{"every 90 seconds", 90 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			sched, err := ParseSchedule(tt.expr)
			if err != nil {
				t.Fatalf("ParseSchedule(%q): %v", tt.expr, err)
			}
			if got := sched.Next(base).Sub(base); got != tt.want {
				t.Errorf("interval = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseSchedule_Cron(t *testing.T) {
	sched, err := ParseSchedule("0 */6 * * *")
	if err != nil {
		t.Fatalf("ParseSchedule: %v", err)
	}

	base := time.Date(2024, 6, 1, 1, 30, 0, 0, time.UTC)
	want := time.Date(2024, 6, 1, 6, 0, 0, 0, time.UTC)
	if got := sched.Next(base); !got.Equal(want) {
		t.Errorf("Next() = %v, want %v", got, want)
	}
}

func TestParseSchedule_Invalid(t *testing.T) {
	invalid := []string{
		"", "   ", "every 0 hours", "every day", "sometimes", "* * *",
		"every 100000000 weeks",
		"every 99999999999999999999 seconds",
		"every 53 weeks",
	}
	for _, expr := range invalid {
		if _, err := ParseSchedule(expr); err == nil {
			t.Errorf("ParseSchedule(%q) error = nil, want error", expr)
		}
	}
}

// 上限ちょうどの間隔は受け付け、桁あふれせずにその間隔で次回実行されることを検証
func TestParseSchedule_MaxInterval(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, expr := range []string{"every 365 days", "every 8760 hours", "every 52 weeks"} {
		sched, err := ParseSchedule(expr)
		if err != nil {
			t.Fatalf("ParseSchedule(%q): %v", expr, err)
		}
		if got := sched.Next(now).Sub(now); got < 52*7*24*time.Hour {
			t.Errorf("ParseSchedule(%q) interval = %s, want at least 52 weeks", expr, got)
		}
	}
}
