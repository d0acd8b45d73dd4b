package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "relay/pkg/domain-errors"
)

func TestParseKey(t *testing.T) {
	for _, k := range AllKeys() {
		got, err := ParseKey(" " + string(k) + " ")
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}

	_, err := ParseKey("text.unknown")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestAllKeysIsACopy(t *testing.T) {
	keys := AllKeys()
	keys[0] = "mutated"
	assert.Equal(t, KeyGreetingUser, AllKeys()[0])
	assert.Len(t, AllKeys(), 15)
}

func TestNormalizeValue(t *testing.T) {
	v, err := NormalizeValue("  hello \n")
	require.NoError(t, err)
	assert.Equal(t, "hello", v)

	_, err = NormalizeValue(" \t\n ")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestMessageID(t *testing.T) {
	assert.Equal(t, "setting.text.published.alert", KeyPublishedAlert.MessageID())
}
