package handler

import (
	"bytes"

	"github.com/goccy/go-json"
)

// amount accepts a decimal as a JSON string ("0.0125") or number (0.0125)
// and keeps the literal text so no precision is lost before decimal parsing
type amount string

func (a *amount) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*a = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = amount(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*a = amount(n.String())
	return nil
}
