package exercises

import (
	"strings"
	"testing"
	"time"
)

func TestScheduledOn(t *testing.T) {
	tests := []struct {
		mask int
		day  time.Weekday
		want bool
	}{
		{1, time.Monday, true},
		{1, time.Sunday, false},
		{64, time.Sunday, true},
		{64, time.Saturday, false},
		{127, time.Wednesday, true},
	}

	for _, tt := range tests {
		if got := ScheduledOn(tt.mask, tt.day); got != tt.want {
			t.Errorf("ScheduledOn(%d, %s) = %v, want %v", tt.mask, tt.day, got, tt.want)
		}
	}
}

func TestDayNames(t *testing.T) {
	if got := strings.Join(DayNames(65), ","); got != "monday,sunday" {
		t.Errorf("expected monday,sunday, got %s", got)
	}
	if got := DayNames(127); len(got) != 7 || got[6] != "sunday" {
		t.Errorf("expected a full week, got %v", got)
	}
}
