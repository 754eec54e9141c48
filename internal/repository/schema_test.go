package repository

import (
	"regexp"
	"strings"
	"testing"
)

// INTERVAL is a keyword in ClickHouse expressions, so the bar and signal
// tables carry interval_days instead of a bare interval column.
func TestSchemaAvoidsIntervalKeyword(t *testing.T) {
	bare := regexp.MustCompile(`(?i)[^_a-zA-Z]interval[^_a-zA-Z]`)
	for _, stmt := range SchemaStatements {
		if bare.MatchString(stmt) {
			t.Fatalf("bare interval identifier in schema statement:\n%s", stmt)
		}
	}
}

func TestSchemaCreatesAllTables(t *testing.T) {
	want := []string{"bf_raw_partitions", "bf_canonical_series", "bf_interval_bars", "bf_signals"}
	for _, table := range want {
		found := false
		for _, stmt := range SchemaStatements {
			if strings.Contains(stmt, "CREATE TABLE IF NOT EXISTS "+table+" ") {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("no create statement for %s", table)
		}
	}
}
