package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSyncStatusIsTerminal(t *testing.T) {
	assert.False(t, SyncStatusPending.IsTerminal())
	assert.True(t, SyncStatusSuccess.IsTerminal())
	assert.True(t, SyncStatusError.IsTerminal())
}
