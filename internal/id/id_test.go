package id

import (
	"testing"
	"time"
)

func TestAtEncodesSealTime(t *testing.T) {
	seal := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	got := At(seal)
	if got.Time() != seal.UnixMilli() {
		t.Fatalf("expected time %d, got %d", seal.UnixMilli(), got.Time())
	}
}

func TestAtUniqueWithinMillisecond(t *testing.T) {
	seal := time.Date(2026, 3, 1, 10, 0, 1, 0, time.UTC)
	a := At(seal)
	b := At(seal)
	if a == b {
		t.Fatalf("expected distinct ids, both %s", a)
	}
	if b <= a {
		t.Fatalf("expected increasing ids, got %d then %d", a, b)
	}
}
