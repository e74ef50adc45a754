package weather

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ReferenceZone is the IANA zone every day bucket is computed in.
const ReferenceZone = "America/Sao_Paulo"

var (
	refLocOnce sync.Once
	refLoc     *time.Location
)

// ReferenceLocation returns the loaded reference zone. If the zone database
// is unavailable it falls back to a fixed UTC-3 offset, which has matched
// Sao Paulo since DST was abolished in 2019.
func ReferenceLocation() *time.Location {
	refLocOnce.Do(func() {
		loc, err := time.LoadLocation(ReferenceZone)
		if err != nil {
			loc = time.FixedZone("-03", -3*60*60)
		}
		refLoc = loc
	})
	return refLoc
}

// CivilDate is a calendar date without a time or zone.
type CivilDate struct {
	Year  int
	Month time.Month
	Day   int
}

// CivilDateOf returns the calendar date of t in the reference zone.
func CivilDateOf(t time.Time) CivilDate {
	y, m, d := t.In(ReferenceLocation()).Date()
	return CivilDate{Year: y, Month: m, Day: d}
}

// Compare returns -1, 0 or +1.
func (d CivilDate) Compare(o CivilDate) int {
	switch {
	case d.Year != o.Year:
		return cmpInt(d.Year, o.Year)
	case d.Month != o.Month:
		return cmpInt(int(d.Month), int(o.Month))
	default:
		return cmpInt(d.Day, o.Day)
	}
}

func (d CivilDate) Before(o CivilDate) bool { return d.Compare(o) < 0 }

func (d CivilDate) IsZero() bool { return d == CivilDate{} }

// String formats d as 2006-01-02.
func (d CivilDate) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Format renders d the way pt-BR short dates are written (dd/mm/yyyy).
func (d CivilDate) Format() string {
	return fmt.Sprintf("%02d/%02d/%04d", d.Day, int(d.Month), d.Year)
}

func (d CivilDate) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *CivilDate) UnmarshalText(b []byte) error {
	t, err := time.Parse(time.DateOnly, string(b))
	if err != nil {
		return err
	}
	*d = CivilDate{Year: t.Year(), Month: t.Month(), Day: t.Day()}
	return nil
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

var errUnsupportedTimestamp = errors.New("unsupported timestamp format")

// layouts without a zone are read as reference-zone wall clock.
var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// ParseTimestamp reads the feed's timestamp text. It accepts RFC3339 with an
// offset, zone-less date-times (reference zone), bare dates (UTC midnight)
// and unix seconds.
func ParseTimestamp(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, errors.New("empty timestamp")
	}

	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts, nil
	}
	for _, layout := range localLayouts {
		if ts, err := time.ParseInLocation(layout, s, ReferenceLocation()); err == nil {
			return ts, nil
		}
	}
	if ts, err := time.Parse(time.DateOnly, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errUnsupportedTimestamp
}
