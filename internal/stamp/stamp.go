// Package stamp appends cache-busting timestamps to resource URLs.
package stamp

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Param is the query parameter carrying the stamp.
const Param = "timestamp"

// Stamper stamps URLs using its clock.
type Stamper struct {
	Now func() time.Time
}

// New returns a Stamper backed by the wall clock.
func New() *Stamper {
	return &Stamper{Now: time.Now}
}

// Stamp appends the current timestamp to raw.
func (s *Stamper) Stamp(raw string) string {
	now := time.Now
	if s != nil && s.Now != nil {
		now = s.Now
	}
	return URL(raw, now())
}

// URL appends timestamp=<ms with 9 significant digits> to raw, replacing an
// earlier stamp and preserving other query parameters and the fragment.
// Empty and "null" URLs are returned unchanged.
func URL(raw string, now time.Time) string {
	if IsNull(raw) {
		return raw
	}
	value := strconv.FormatFloat(float64(now.UnixMilli()), 'g', 9, 64)

	parsed, err := url.Parse(raw)
	if err != nil {
		sep := "?"
		if strings.Contains(raw, "?") {
			sep = "&"
		}
		return raw + sep + Param + "=" + url.QueryEscape(value)
	}
	query := parsed.Query()
	query.Set(Param, value)
	parsed.RawQuery = query.Encode()
	return parsed.String()
}

// IsNull reports whether raw is the "no resource" sentinel.
func IsNull(raw string) bool {
	trimmed := strings.TrimSpace(raw)
	return trimmed == "" || trimmed == "null"
}
