package domain

import (
	"encoding/json"
	"time"
)

// ParseDate accepts an ISO-8601 calendar date (YYYY-MM-DD, read as UTC
// midnight) or an RFC 3339 timestamp.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, Errorf(ErrValidation, "date must be YYYY-MM-DD or RFC 3339, got %q", s)
	}
	return t, nil
}

// Date is a time.Time that decodes from either form ParseDate accepts.
type Date time.Time

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return Errorf(ErrValidation, "date must be a string")
	}
	t, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = Date(t)
	return nil
}
