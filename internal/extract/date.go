package extract

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var germanMonths = map[string]string{
	"Januar":    "01",
	"Februar":   "02",
	"März":      "03",
	"April":     "04",
	"Mai":       "05",
	"Juni":      "06",
	"Juli":      "07",
	"August":    "08",
	"September": "09",
	"Oktober":   "10",
	"November":  "11",
	"Dezember":  "12",
}

// ParseGermanDate converts DD.MM.YYYY to YYYY-MM-DD. Input that is not
// three dot-separated numbers is returned unchanged.
func ParseGermanDate(s string) string {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) != 3 || !allDigits(parts) {
		return s
	}
	return fmt.Sprintf("%s-%s-%s", parts[2], pad2(parts[1]), pad2(parts[0]))
}

// CompactDate converts YYYYMMDD to YYYY-MM-DD
func CompactDate(s string) string {
	if len(s) != 8 || !allDigits([]string{s}) {
		return s
	}
	return s[:4] + "-" + s[4:6] + "-" + s[6:]
}

// GermanMonthDate builds YYYY-MM-DD from "15", "Januar", "2026".
// Unknown month names map to January.
func GermanMonthDate(day, month, year string) string {
	m, ok := germanMonths[month]
	if !ok {
		m = "01"
	}
	d, err := strconv.Atoi(day)
	if err != nil {
		return fmt.Sprintf("%s-%s-%s", year, m, day)
	}
	return fmt.Sprintf("%s-%s-%02d", year, m, d)
}

// ISOToGerman converts YYYY-MM-DD to DD.MM.YYYY
func ISOToGerman(s string) string {
	parts := strings.Split(s, "-")
	if len(parts) != 3 {
		return s
	}
	return parts[2] + "." + parts[1] + "." + parts[0]
}

// ISOToGermanShort converts YYYY-MM-DD to D.M.YYYY without zero padding
func ISOToGermanShort(s string) string {
	parts := strings.Split(s, "-")
	if len(parts) != 3 {
		return s
	}
	d, err1 := strconv.Atoi(parts[2])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return s
	}
	return fmt.Sprintf("%d.%d.%s", d, m, parts[0])
}

// ValidISODate reports whether s is a calendar date in YYYY-MM-DD form
func ValidISODate(s string) bool {
	_, err := time.Parse(time.DateOnly, s)
	return err == nil
}

func allDigits(parts []string) bool {
	for _, p := range parts {
		if p == "" {
			return false
		}
		for _, r := range p {
			if r < '0' || r > '9' {
				return false
			}
		}
	}
	return true
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}
