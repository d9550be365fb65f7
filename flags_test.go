package signals_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vsariola/signals"
)

func TestFlagsValidate(t *testing.T) {
	valid := []signals.Flags{
		0,
		signals.Generator,
		signals.Effect | signals.PassThru,
		signals.SourceDevice | signals.Generator,
		signals.Constant,
		signals.Cyclic | signals.Effect,
		signals.SinkDevice,
		signals.SideEffect,
	}
	for _, f := range valid {
		assert.NoError(t, f.Validate(), f.String())
	}
	invalid := []signals.Flags{
		signals.Device,
		signals.Constant | signals.Generator,
		signals.Constant | signals.SourceDevice,
		signals.SinkDevice | signals.Effect,
		1 << 20,
	}
	for _, f := range invalid {
		assert.ErrorIs(t, f.Validate(), signals.ErrBadFlags, f.String())
	}
}

func TestFlagsUnions(t *testing.T) {
	assert.True(t, signals.Audio.Has(signals.SourceDevice))
	assert.False(t, signals.Audio.Has(signals.SinkDevice))
	assert.True(t, signals.SideEffect.Has(signals.PassThru|signals.Vis|signals.Recorder))
	assert.Equal(t, "GENERATOR|PASSTHRU", (signals.Generator | signals.PassThru).String())
}
