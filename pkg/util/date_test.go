package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	got, ok := ParseDate("2024-10-10")
	if !ok {
		t.Fatalf("expected ok")
	}
	if FormatDate(got) != "2024-10-10" {
		t.Fatalf("unexpected date %v", got)
	}
}

func TestParseDateRFC3339Truncates(t *testing.T) {
	got, ok := ParseDate("2024-10-10T10:10:10Z")
	if !ok {
		t.Fatalf("expected ok")
	}
	if !got.Equal(time.Date(2024, 10, 10, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected date %v", got)
	}
}

func TestParseDateUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseDate(strconv.FormatInt(ts, 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if FormatDate(got) != "2024-10-10" {
		t.Fatalf("unexpected date %v", got)
	}
}

func TestParseDateDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 0, 0, 0, 0, time.UTC)
	if got := ParseDateDefault("not-a-date", def); !got.Equal(def) {
		t.Fatalf("expected default")
	}
}

func TestBusinessDaysSkipsWeekends(t *testing.T) {
	// 2024-01-05 is a Friday.
	days := BusinessDays(time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC))
	if len(days) != 3 {
		t.Fatalf("expected 3 business days, got %d", len(days))
	}
	if days[1].Weekday() != time.Monday {
		t.Fatalf("expected Monday after Friday, got %v", days[1].Weekday())
	}
}

func TestNextBusinessDays(t *testing.T) {
	days := NextBusinessDays(time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC), 5)
	if len(days) != 5 {
		t.Fatalf("expected 5 days, got %d", len(days))
	}
	if days[0].Weekday() != time.Monday || days[4].Weekday() != time.Friday {
		t.Fatalf("unexpected span %v..%v", days[0], days[4])
	}
}
