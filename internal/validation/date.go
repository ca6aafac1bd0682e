package validation

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Date is an optional timestamp field. Clients send either a calendar date
// ("2025-03-01") or a full ISO-8601 timestamp; null and "" leave it unset.
type Date struct {
	Time  time.Time
	Valid bool
}

func NewDate(t time.Time) Date {
	return Date{Time: t, Valid: true}
}

func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%q is not a valid date", s)
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if strings.TrimSpace(string(b)) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	if strings.TrimSpace(s) == "" {
		*d = Date{}
		return nil
	}
	t, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = Date{Time: t, Valid: true}
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	if !d.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(d.Time.Format(time.RFC3339))
}

// Day truncates the value to its UTC calendar day.
func (d Date) Day() time.Time {
	t := d.Time.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
