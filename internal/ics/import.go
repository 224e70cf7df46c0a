package ics

import (
	"time"

	"plancal/internal/model"
)

// DefaultImportWindow is how far recurring series are expanded on import.
const DefaultImportWindow = 365 * 24 * time.Hour

// Decode parses an ICS payload and returns single-day events for every
// occurrence between from and to, in loc.
func Decode(body []byte, loc *time.Location, from, to time.Time) ([]model.Event, error) {
	parsed, err := Parse(body)
	if err != nil {
		return nil, err
	}
	res, err := Expand(parsed, ExpandConfig{
		DisplayLocation: loc,
		RangeStart:      from,
		RangeEnd:        to,
	})
	if err != nil {
		return nil, err
	}
	return ToEvents(res.Occurrences, loc), nil
}
