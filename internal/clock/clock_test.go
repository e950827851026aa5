package clock

import (
	"testing"
	"time"
)

func TestFixed(t *testing.T) {
	c := NewFixed(2024, time.February, 29)

	want := time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC)
	if got := c.Today(); !got.Equal(want) {
		t.Errorf("Today() = %v, want %v", got, want)
	}
	if got := c.Now(); got.Hour() != 12 {
		t.Errorf("Now() hour = %d, want 12", got.Hour())
	}
}

func TestSystem_TodayIsMidnight(t *testing.T) {
	today := System{}.Today()

	if today.Hour() != 0 || today.Minute() != 0 || today.Second() != 0 || today.Nanosecond() != 0 {
		t.Errorf("expected midnight, got %v", today)
	}
	if today.Location() != time.UTC {
		t.Errorf("expected UTC, got %v", today.Location())
	}
}
