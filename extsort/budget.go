package extsort

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultBudget is used when no sort buffer size is configured.
const DefaultBudget = "10%"

var suffixes = map[byte]int64{
	'b': 1, 'B': 1,
	'k': 1 << 10, 'K': 1 << 10,
	'm': 1 << 20, 'M': 1 << 20,
	'g': 1 << 30, 'G': 1 << 30,
	't': 1 << 40, 'T': 1 << 40,
}

// assumedMemory stands in for physical memory where it can't be read.
const assumedMemory = 1 << 30

// ParseBudget turns a sort buffer size into bytes. It accepts what sort -S
// accepts: "N%" of physical memory, a number followed by b, K, M, G or T
// (powers of 1024), or a bare number of kibibytes.
func ParseBudget(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		s = DefaultBudget
	}
	if strings.HasSuffix(s, "%") {
		pct, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
		if err != nil || pct <= 0 || pct > 100 {
			return 0, fmt.Errorf("extsort: bad sort buffer size %q", s)
		}
		total, err := physicalMemory()
		if err != nil || total == 0 {
			total = assumedMemory
		}
		return int64(float64(total) * pct / 100), nil
	}
	num, mult := s, int64(1024)
	if last := s[len(s)-1]; last < '0' || last > '9' {
		m, ok := suffixes[last]
		if !ok {
			return 0, fmt.Errorf("extsort: bad sort buffer size %q", s)
		}
		num, mult = s[:len(s)-1], m
	}
	n, err := strconv.ParseInt(num, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("extsort: bad sort buffer size %q", s)
	}
	return n * mult, nil
}
