package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusRank(t *testing.T) {
	assert.Equal(t, 0, StatusInitiated.Rank())
	assert.Equal(t, 1, StatusPending.Rank())
	assert.Equal(t, 2, StatusSettled.Rank())
	assert.Equal(t, 2, StatusFailed.Rank())
	assert.Equal(t, 2, StatusExpired.Rank())
	assert.Equal(t, 3, StatusRefunded.Rank())
	assert.Equal(t, -1, Status("paid").Rank())
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusInitiated.Terminal())
	assert.False(t, StatusPending.Terminal())
	assert.True(t, StatusSettled.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.True(t, StatusExpired.Terminal())
	assert.True(t, StatusRefunded.Terminal())
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("settled")
	assert.NoError(t, err)
	assert.Equal(t, StatusSettled, s)

	_, err = ParseStatus("capture")
	assert.Error(t, err)

	_, err = ParseStatus("")
	assert.Error(t, err)
}
