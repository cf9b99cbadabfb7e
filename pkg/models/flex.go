package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FlexString accepts a JSON string or a JSON number. Numbers keep their
// literal text, so 42 decodes to "42".
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", string(data))
	}
	*f = FlexString(n.String())
	return nil
}

func (f FlexString) String() string {
	return string(f)
}

// FlexInt64 accepts a JSON integer or a string holding one, so "404" and 404
// decode to the same value. null and "" decode to 0.
type FlexInt64 int64

func (f *FlexInt64) UnmarshalJSON(data []byte) error {
	var s FlexString
	if err := s.UnmarshalJSON(data); err != nil {
		return err
	}

	str := strings.TrimSpace(s.String())
	if str == "" {
		*f = 0
		return nil
	}

	n, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return fmt.Errorf("expected integer, got %s", string(data))
	}
	*f = FlexInt64(n)
	return nil
}
