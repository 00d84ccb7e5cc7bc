package client

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSocketID(t *testing.T) {
	id := newSocketID()
	require.True(t, strings.HasPrefix(id, "nats_"), id)
	assert.Len(t, id, len("nats_")+13)
	assert.NotEqual(t, id, newSocketID())
}

func TestDefaultConnectionName(t *testing.T) {
	assert.Equal(t, "laravel-echo-abcdef12", defaultConnectionName("nats_abcdef1234567"))
	assert.Equal(t, "laravel-echo-abc", defaultConnectionName("nats_abc"))
}
