package messenger

//go:generate mockgen -source=messenger.go -destination=mocks/mocks.go -package=mocks Messenger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "relay/pkg/domain-errors"
)

func TestHandleRoundTrip(t *testing.T) {
	h := Handle{ChannelID: "100", MessageID: "200"}
	parsed, err := ParseHandle(h.String())
	require.NoError(t, err)
	assert.Equal(t, h, parsed)
	assert.False(t, parsed.IsZero())
	assert.True(t, Handle{}.IsZero())
}

func TestParseHandleRejectsMalformed(t *testing.T) {
	for _, in := range []string{"", "100", "100/", "/200"} {
		_, err := ParseHandle(in)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation), in)
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in   string
		name string
		args string
		ok   bool
	}{
		{"/start", "start", "", true},
		{"  /Settings  ", "settings", "", true},
		{"/start@relaybot hello", "start", "hello", true},
		{"/", "", "", false},
		{"hello", "", "", false},
		{"/@bot", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			name, args, ok := ParseCommand(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.name, name)
			assert.Equal(t, tt.args, args)
		})
	}
}
