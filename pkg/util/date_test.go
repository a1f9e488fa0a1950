package util

import (
	"testing"
	"time"
)

func TestNextTradingDaySkipsWeekend(t *testing.T) {
	// Friday 2024-10-11 -> Monday 2024-10-14
	fri := time.Date(2024, 10, 11, 15, 0, 0, 0, time.UTC)
	got := NextTradingDay(fri)
	if FormatDate(got) != "2024-10-14" {
		t.Fatalf("unexpected next trading day %s", FormatDate(got))
	}
}

func TestNextTradingDayMidweek(t *testing.T) {
	tue := time.Date(2024, 10, 8, 9, 0, 0, 0, time.UTC)
	got := NextTradingDay(tue)
	if FormatDate(got) != "2024-10-09" {
		t.Fatalf("unexpected next trading day %s", FormatDate(got))
	}
}

func TestParseDate(t *testing.T) {
	got, ok := ParseDate("2024-10-10")
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Year() != 2024 || got.Month() != time.October || got.Day() != 10 {
		t.Fatalf("unexpected date %v", got)
	}
	if _, ok := ParseDate("10/10/2024"); ok {
		t.Fatalf("expected parse failure")
	}
}
