package iot

import (
	"errors"
	"sort"
	"strings"

	z "github.com/Oudwins/zog"
)

var (
	ErrDeviceNotFound        = errors.New("no events found for this device id")
	ErrLocationNotFound      = errors.New("no location found for this device id")
	ErrGeolocatorUnavailable = errors.New("geolocation service not available")
	ErrLocationUnavailable   = errors.New("location service not available")
)

// ValidationError is returned for malformed input. Handlers map it to a
// client error.
type ValidationError struct {
	Message string
	Issues  z.ZogIssueMap
}

func (e *ValidationError) Error() string {
	fields := e.Fields()
	if len(fields) == 0 {
		return e.Message
	}
	return e.Message + ": " + strings.Join(fields, ", ")
}

// Fields lists the offending fields, skipping zog's "$" summary keys.
func (e *ValidationError) Fields() []string {
	fields := make([]string, 0, len(e.Issues))
	for field := range e.Issues {
		if strings.HasPrefix(field, "$") {
			continue
		}
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}
