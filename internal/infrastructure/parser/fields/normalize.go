package fields

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	wvdohCode = regexp.MustCompile(`^(\d{3})(\d{3})-\d{3}$`)
	moneyJunk = strings.NewReplacer(",", "", "$", "", " ", "", " ", "")
)

// NormalizeItemCode canonicalizes an item code. WVDOH-style "201001-000"
// becomes "201.001"; everything else is trimmed. Idempotent.
func NormalizeItemCode(raw string) string {
	code := strings.TrimSpace(raw)
	if m := wvdohCode.FindStringSubmatch(code); m != nil {
		return m[1] + "." + m[2]
	}
	return code
}

// ParseQuantity parses a lenient decimal, tolerating thousands separators and
// currency symbols. Unparsable or negative input yields 0, never an error;
// persisted quantities are always non-negative.
func ParseQuantity(raw string) float64 {
	v, ok := parseDecimal(raw)
	if !ok || v < 0 {
		return 0
	}
	return v
}

// ParsePrice parses like ParseQuantity but reports absence instead of zero.
func ParsePrice(raw string) *float64 {
	v, ok := parseDecimal(raw)
	if !ok {
		return nil
	}
	return &v
}

func parseDecimal(raw string) (float64, bool) {
	s := moneyJunk.Replace(strings.TrimSpace(raw))
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ExcelSerialToDate converts an Excel date serial number to a UTC calendar
// date. Excel day 1 is 1900-01-01; the epoch below absorbs the fictitious
// 1900 leap day.
func ExcelSerialToDate(serial float64) time.Time {
	epoch := time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)
	return epoch.AddDate(0, 0, int(serial))
}

var dateLayouts = []string{"2006-01-02", "01/02/2006", "1/2/2006", "January 2, 2006", "02-Jan-2006", "2006/01/02"}

// ParseDate tries the calendar layouts seen across schedule exports.
func ParseDate(raw string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, strings.TrimSpace(raw)); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FoldName lowercases a tag/header name and strips everything but letters and
// digits, so "Bid-Items", "bid_items" and "BidItems" compare equal.
func FoldName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
