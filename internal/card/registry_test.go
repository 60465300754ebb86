package card

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"timercard/internal/clock"
	"timercard/internal/ha"
)

func TestRegistryDefaultHasTimerCard(t *testing.T) {
	def := Default.Get(TypeName)
	require.NotNil(t, def)
	assert.NotNil(t, def.Factory)
}

func TestRegistryGetMatchesPrefixedForms(t *testing.T) {
	assert.NotNil(t, Default.Get("timer-card"))
	assert.NotNil(t, Default.Get("custom:timer-card"))
	assert.Nil(t, Default.Get("unknown-card"))
}

func TestRegistryRegisterValidation(t *testing.T) {
	r := NewRegistry()

	assert.Error(t, r.Register(Definition{Factory: nil, Type: ""}))
	assert.Error(t, r.Register(Definition{Type: "x", Factory: nil}))

	require.NoError(t, r.Register(Definition{
		Type: "x",
		Factory: func(name string, cfg Config, hub ha.HubClient, clk clock.Clock, logger *zap.Logger, events *Events) (*Card, error) {
			return nil, nil
		},
	}))
}
