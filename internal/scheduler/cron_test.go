package scheduler

import (
	"testing"
	"time"
)

func TestValidateCronExpr(t *testing.T) {
	tests := []struct {
		expr    string
		wantErr bool
	}{
		{"0 3 * * *", false},
		{"*/5 * * * *", false},
		{"@daily", false},
		{"@every 30m", false},
		{"0 3 * *", true},
		{"every day", true},
		{"61 * * * *", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			err := ValidateCronExpr(tt.expr)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateCronExpr(%q) error = %v, wantErr %v", tt.expr, err, tt.wantErr)
			}
		})
	}
}

func TestNextDue(t *testing.T) {
	from := time.Date(2024, 5, 10, 14, 30, 0, 0, time.UTC)

	tests := []struct {
		expr string
		want time.Time
	}{
		{"0 3 * * *", time.Date(2024, 5, 11, 3, 0, 0, 0, time.UTC)},
		{"*/15 * * * *", time.Date(2024, 5, 10, 14, 45, 0, 0, time.UTC)},
		{"@hourly", time.Date(2024, 5, 10, 15, 0, 0, 0, time.UTC)},
		{"@every 10m", from.Add(10 * time.Minute)},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := NextDue(tt.expr, from)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("NextDue(%q) = %s, want %s", tt.expr, got, tt.want)
			}
		})
	}
}

func TestNextDue_Invalid(t *testing.T) {
	if _, err := NextDue("not a cron", time.Now()); err == nil {
		t.Error("expected error for invalid expression")
	}
}
