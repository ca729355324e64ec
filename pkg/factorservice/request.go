package factorservice

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/illmade-knight/go-primefactors/pkg/messagepipeline"
)

// ErrInvalidRequest is returned for payloads that do not carry a uint64.
var ErrInvalidRequest = errors.New("invalid factor request")

// MaxRequestSize bounds a request payload in bytes. A JSON request with a
// 20-digit number and a uuid request id fits comfortably.
const MaxRequestSize = 1024

// FactorRequest asks for the distinct prime factors of Number.
type FactorRequest struct {
	RequestID string
	Number    uint64
}

// wireRequest is the JSON form of a request. Number may be a JSON number or a
// decimal string, since most JSON clients cannot represent every uint64.
type wireRequest struct {
	RequestID string          `json:"request_id"`
	Number    json.RawMessage `json:"number"`
}

// ParseNumber parses a base-10 uint64, ignoring surrounding whitespace.
// Signs, fractions and out-of-range values are rejected.
func ParseNumber(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty number", ErrInvalidRequest)
	}
	if s[0] == '+' || s[0] == '-' {
		return 0, fmt.Errorf("%w: signed number %q", ErrInvalidRequest, s)
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a uint64", ErrInvalidRequest, s)
	}
	return n, nil
}

// ParseRequest decodes a request from a message payload. The payload is
// either a JSON object or a bare decimal. The request id defaults to the
// message id.
func ParseRequest(msg *messagepipeline.Message) (*FactorRequest, error) {
	payload := bytes.TrimSpace(msg.Payload)
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidRequest)
	}

	req := &FactorRequest{RequestID: msg.ID}
	if payload[0] != '{' {
		n, err := ParseNumber(string(payload))
		if err != nil {
			return nil, err
		}
		req.Number = n
		return req, nil
	}

	var wire wireRequest
	if err := json.Unmarshal(payload, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if len(wire.Number) == 0 || string(wire.Number) == "null" {
		return nil, fmt.Errorf("%w: missing number", ErrInvalidRequest)
	}

	raw := string(wire.Number)
	if wire.Number[0] == '"' {
		if err := json.Unmarshal(wire.Number, &raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
	}
	n, err := ParseNumber(raw)
	if err != nil {
		return nil, err
	}
	req.Number = n
	if wire.RequestID != "" {
		req.RequestID = wire.RequestID
	}
	return req, nil
}
