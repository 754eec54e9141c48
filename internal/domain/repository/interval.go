package repository

import (
	"fmt"
	"sort"
)

// FibonacciIntervals are the supported resample widths in trading days.
var FibonacciIntervals = []int{3, 5, 8, 13, 21, 34}

// IsValidInterval returns true if n is a supported interval.
func IsValidInterval(n int) bool {
	for _, v := range FibonacciIntervals {
		if v == n {
			return true
		}
	}
	return false
}

// ValidateIntervals checks a configured interval list: non-empty, strictly
// positive, strictly ascending, no duplicates.
func ValidateIntervals(intervals []int) error {
	if len(intervals) == 0 {
		return fmt.Errorf("interval list is empty")
	}
	if !sort.IntsAreSorted(intervals) {
		return fmt.Errorf("intervals must be ascending: %v", intervals)
	}
	prev := 0
	for _, n := range intervals {
		if n <= 0 {
			return fmt.Errorf("interval must be positive, got %d", n)
		}
		if n == prev {
			return fmt.Errorf("duplicate interval %d", n)
		}
		prev = n
	}
	return nil
}
