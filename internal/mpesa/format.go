package mpesa

import (
	"encoding/base64"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

const (
	countryCode    = "254"
	trunkPrefix    = "0"
	phoneLength    = 12
	timestampKey   = "20060102150405"
	gatewayDateLen = len(timestampKey)
)

// NormalizePhone reduces a Kenyan phone number to its 12-digit 2547XXXXXXXX
// form. Anything that does not come out at exactly 12 digits is rejected.
func NormalizePhone(input string) (string, error) {
	var b strings.Builder
	for _, r := range input {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	switch {
	case strings.HasPrefix(digits, countryCode):
	case strings.HasPrefix(digits, trunkPrefix):
		digits = countryCode + strings.TrimPrefix(digits, trunkPrefix)
	default:
		digits = countryCode + digits
	}

	if len(digits) != phoneLength {
		return "", validationError("phoneNumber", "invalid phone number %q: got %d digits, want %d", input, len(digits), phoneLength)
	}
	return digits, nil
}

// Timestamp formats now as YYYYMMDDHHMMSS in local wall-clock time. The
// gateway pairs it with the password, so both must come from the same value.
func Timestamp(now time.Time) string {
	return now.Local().Format(timestampKey)
}

// Password derives the request password: base64(shortCode + passKey + timestamp).
func Password(shortCode, passKey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortCode + passKey + timestamp))
}

// ParseGatewayDate decodes a 14-digit YYYYMMDDHHMMSS value, given as a string
// or any JSON number form, into a local time.
func ParseGatewayDate(value any) (time.Time, error) {
	var raw string
	switch v := value.(type) {
	case string:
		raw = strings.TrimSpace(v)
	case json.Number:
		raw = v.String()
	case int:
		raw = strconv.Itoa(v)
	case int64:
		raw = strconv.FormatInt(v, 10)
	case float64:
		raw = strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return time.Time{}, validationError("transactionDate", "unsupported date value %v", value)
	}

	if len(raw) != gatewayDateLen {
		return time.Time{}, validationError("transactionDate", "invalid gateway date %q", raw)
	}

	parts := make([]int, 0, 6)
	for _, span := range [][2]int{{0, 4}, {4, 6}, {6, 8}, {8, 10}, {10, 12}, {12, 14}} {
		n, err := strconv.Atoi(raw[span[0]:span[1]])
		if err != nil {
			return time.Time{}, validationError("transactionDate", "invalid gateway date %q", raw)
		}
		parts = append(parts, n)
	}

	return time.Date(parts[0], time.Month(parts[1]), parts[2], parts[3], parts[4], parts[5], 0, time.Local), nil
}
