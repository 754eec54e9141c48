package util

import (
    "testing"
    "time"
)

func TestParseDate(t *testing.T) {
    got, ok := ParseDate("2024-01-02")
    if !ok {
        t.Fatalf("expected ok")
    }
    want := Date(2024, time.January, 2)
    if !got.Equal(want) {
        t.Fatalf("unexpected date %v", got)
    }
}

func TestParseDateInvalid(t *testing.T) {
    if _, ok := ParseDate(""); ok {
        t.Fatalf("expected empty to fail")
    }
    if _, ok := ParseDate("2024-13-40"); ok {
        t.Fatalf("expected invalid to fail")
    }
    if _, ok := ParseDate("2024-01-02T00:00:00Z"); ok {
        t.Fatalf("expected timestamp form to fail")
    }
}

func TestFormatDateRoundTrip(t *testing.T) {
    d := Date(2023, time.July, 14)
    got, ok := ParseDate(FormatDate(d))
    if !ok || !got.Equal(d) {
        t.Fatalf("round trip failed: %v", got)
    }
}

func TestMidnight(t *testing.T) {
    ts := time.Date(2024, 3, 5, 16, 30, 12, 999, time.UTC)
    if got := Midnight(ts); !got.Equal(Date(2024, time.March, 5)) {
        t.Fatalf("unexpected midnight %v", got)
    }
}

func TestParseTimeRFC3339(t *testing.T) {
    s := "2024-10-10T10:10:10Z"
    got, ok := ParseTime(s)
    if !ok {
        t.Fatalf("expected ok")
    }
    if got.UTC().Format(time.RFC3339) != s {
        t.Fatalf("unexpected time %v", got)
    }
}
