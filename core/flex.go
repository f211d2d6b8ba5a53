package core

import (
	"bytes"
	"context"
	"encoding/json"
	"net"

	"github.com/pkg/errors"
)

// FlexString decodes JSON strings, numbers and booleans as text; null, objects and arrays as "".
// The school backends are loose about which of them they send for ids and amounts.
type FlexString string

func (s *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || string(b) == "null":
		*s = ""
	case b[0] == '"':
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*s = FlexString(str)
	case b[0] == '{' || b[0] == '[':
		*s = ""
	default:
		*s = FlexString(b) // number or bool literal
	}
	return nil
}

func (s FlexString) String() string {
	return string(s)
}

// AsNetworkError wraps a transport failure into a *NetworkError, flagging timeouts.
func AsNetworkError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewNetworkError(err, true)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewNetworkError(err, true)
	}
	return NewNetworkError(err, false)
}
