package scheduler

import (
	"testing"
	"time"
)

func TestNextDue(t *testing.T) {
	from := time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)

	tests := []struct {
		name     string
		expr     string
		expected time.Time
	}{
		{
			name:     "every minute",
			expr:     "* * * * *",
			expected: time.Date(2025, 3, 10, 14, 31, 0, 0, time.UTC),
		},
		{
			name:     "hourly on the hour",
			expr:     "0 * * * *",
			expected: time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC),
		},
		{
			name:     "daily at midnight",
			expr:     "0 0 * * *",
			expected: time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "every 15 minutes",
			expr:     "*/15 * * * *",
			expected: time.Date(2025, 3, 10, 14, 45, 0, 0, time.UTC),
		},
		{
			name:     "weekly on monday",
			expr:     "0 9 * * 1",
			expected: time.Date(2025, 3, 17, 9, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextDue(tt.expr, from)
			if err != nil {
				t.Fatalf("NextDue: %v", err)
			}
			if !got.Equal(tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestNextDue_Invalid(t *testing.T) {
	if _, err := NextDue("not a cron", time.Now()); err == nil {
		t.Error("expected error for malformed expression")
	}
}

func TestValidateCronExpr(t *testing.T) {
	valid := []string{"* * * * *", "0 0 * * *", "*/5 9-17 * * 1-5"}
	for _, expr := range valid {
		if err := ValidateCronExpr(expr); err != nil {
			t.Errorf("%q should be valid: %v", expr, err)
		}
	}

	invalid := []string{"", "* * * *", "61 * * * *", "* * * * * *"}
	for _, expr := range invalid {
		if err := ValidateCronExpr(expr); err == nil {
			t.Errorf("%q should be invalid", expr)
		}
	}
}
