package factorservice_test

import (
	"testing"

	"github.com/illmade-knight/go-primefactors/pkg/factorservice"
	"github.com/illmade-knight/go-primefactors/pkg/messagepipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMessage(id, payload string) *messagepipeline.Message {
	return &messagepipeline.Message{
		MessageData: messagepipeline.MessageData{ID: id, Payload: []byte(payload)},
		Ack:         func() {},
		Nack:        func() {},
	}
}

func TestParseRequest(t *testing.T) {
	testCases := []struct {
		name      string
		payload   string
		wantID    string
		wantValue uint64
	}{
		{name: "bare decimal", payload: "360", wantID: "msg-1", wantValue: 360},
		{name: "bare decimal with newline", payload: " 97\n", wantID: "msg-1", wantValue: 97},
		{name: "json number", payload: `{"number": 243}`, wantID: "msg-1", wantValue: 243},
		{name: "json string", payload: `{"number": "18446744073709551615"}`, wantID: "msg-1", wantValue: 18446744073709551615},
		{name: "json with request id", payload: `{"request_id": "r-42", "number": 77}`, wantID: "r-42", wantValue: 77},
		{name: "zero", payload: "0", wantID: "msg-1", wantValue: 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req, err := factorservice.ParseRequest(newMessage("msg-1", tc.payload))

			require.NoError(t, err)
			assert.Equal(t, tc.wantID, req.RequestID)
			assert.Equal(t, tc.wantValue, req.Number)
		})
	}
}

func TestParseRequest_Invalid(t *testing.T) {
	payloads := map[string]string{
		"empty":           "",
		"whitespace":      "   ",
		"negative":        "-5",
		"explicit plus":   "+5",
		"overflow":        "18446744073709551616",
		"fraction":        `{"number": 3.5}`,
		"exponent":        `{"number": 1e3}`,
		"missing number":  `{"request_id": "r-1"}`,
		"null number":     `{"number": null}`,
		"not a number":    "twelve",
		"broken json":     `{"number": `,
		"string fraction": `{"number": "3.5"}`,
	}

	for name, payload := range payloads {
		t.Run(name, func(t *testing.T) {
			_, err := factorservice.ParseRequest(newMessage("msg-1", payload))

			require.Error(t, err)
			assert.ErrorIs(t, err, factorservice.ErrInvalidRequest)
		})
	}
}

func TestParseNumber(t *testing.T) {
	n, err := factorservice.ParseNumber("4294967296")
	require.NoError(t, err)
	assert.Equal(t, uint64(1)<<32, n)

	_, err = factorservice.ParseNumber("0x10")
	assert.ErrorIs(t, err, factorservice.ErrInvalidRequest)
}
