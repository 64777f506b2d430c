package repository

import (
	"testing"
	"time"
)

func TestNullFloat(t *testing.T) {
	if nullFloat(nil) != nil {
		t.Fatal("nil pointer should map to SQL NULL")
	}
	v := 0.4
	if got := nullFloat(&v); got != 0.4 {
		t.Fatalf("expected 0.4, got %v", got)
	}
}

func TestNullTime(t *testing.T) {
	if nullTime(nil) != nil {
		t.Fatal("nil pointer should map to SQL NULL")
	}
	var zero time.Time
	if nullTime(&zero) != nil {
		t.Fatal("zero time should map to SQL NULL")
	}
	ts := time.Date(2024, 3, 15, 12, 30, 0, 0, time.FixedZone("EST", -5*3600))
	got := nullTime(&ts)
	tm, ok := got.(time.Time)
	if !ok || tm.Location() != time.UTC {
		t.Fatalf("expected UTC time, got %v", got)
	}
}
