package types

import (
	"testing"
	"time"
)

func TestDateOfUsesUTC(t *testing.T) {
	// 23:30 in UTC-5 is 04:30 the next day in UTC.
	loc := time.FixedZone("UTC-5", -5*3600)
	instant := time.Date(2025, 3, 10, 23, 30, 0, 0, loc)

	if got := DateOf(instant); got != Date("2025-03-11") {
		t.Errorf("DateOf: got %s, want 2025-03-11", got)
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-06-01")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if d.String() != "2025-06-01" {
		t.Errorf("got %s", d)
	}

	if _, err := ParseDate("06/01/2025"); err == nil {
		t.Error("expected error for non-ISO format")
	}
}

func TestDateArithmetic(t *testing.T) {
	d := Date("2025-12-31")

	if next := d.Next(); next != Date("2026-01-01") {
		t.Errorf("Next: got %s, want 2026-01-01", next)
	}
	if prev := d.AddDays(-31); prev != Date("2025-11-30") {
		t.Errorf("AddDays(-31): got %s, want 2025-11-30", prev)
	}
	if !d.Before(d.Next()) {
		t.Error("Before: expected d < d.Next()")
	}
}

func TestDateScan(t *testing.T) {
	var d Date

	if err := d.Scan("2025-01-15"); err != nil || d != Date("2025-01-15") {
		t.Errorf("Scan string: %v, %s", err, d)
	}
	if err := d.Scan([]byte("2025-01-16")); err != nil || d != Date("2025-01-16") {
		t.Errorf("Scan bytes: %v, %s", err, d)
	}
	if err := d.Scan(time.Date(2025, 1, 17, 12, 0, 0, 0, time.UTC)); err != nil || d != Date("2025-01-17") {
		t.Errorf("Scan time: %v, %s", err, d)
	}
	if err := d.Scan(42); err == nil {
		t.Error("Scan int: expected error")
	}
}

func TestZeroDate(t *testing.T) {
	var d Date
	if !d.IsZero() {
		t.Error("zero Date should report IsZero")
	}
	if !d.Time().IsZero() {
		t.Error("zero Date should map to zero time")
	}
}
