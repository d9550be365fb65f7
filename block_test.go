package signals_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vsariola/signals"
)

func TestBlockBroadcast(t *testing.T) {
	b := signals.ConstantBlock(0.5)
	wide, err := b.Broadcast(signals.Shape{Frames: 3, Channels: 2})
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.5, 0.5, 0.5, 0.5, 0.5}, wide.Data)

	stereo := signals.Block{Shape: signals.Shape{Frames: 1, Channels: 2}, Data: []float32{1, 2}}
	long, err := stereo.Broadcast(signals.Shape{Frames: 2, Channels: 2})
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 1, 2}, long.Data)

	_, err = long.Broadcast(signals.Shape{Frames: 4, Channels: 2})
	assert.ErrorIs(t, err, signals.ErrIncompatibleShapes)
}

func TestBlockArithmetic(t *testing.T) {
	ramp := signals.Block{Shape: signals.Shape{Frames: 3, Channels: 1}, Data: []float32{1, 2, 3}}
	sum, err := signals.Add(ramp, signals.ConstantBlock(1))
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 3, 4}, sum.Data)
	assert.Equal(t, []float32{1, 2, 3}, ramp.Data, "operands must not be modified")

	pan := signals.Block{Shape: signals.Shape{Frames: 1, Channels: 2}, Data: []float32{0, 1}}
	prod, err := signals.Mul(ramp, pan)
	require.NoError(t, err)
	assert.Equal(t, signals.Shape{Frames: 3, Channels: 2}, prod.Shape)
	assert.Equal(t, []float32{0, 1, 0, 2, 0, 3}, prod.Data)

	_, err = signals.Add(ramp, signals.NewBlock(signals.Shape{Frames: 2, Channels: 1}))
	assert.ErrorIs(t, err, signals.ErrIncompatibleShapes)

	assert.Equal(t, []float32{-2, -4, -6}, ramp.Scale(-2).Data)
	assert.Equal(t, float32(6), ramp.Scale(-2).Peak())
	assert.InDelta(t, 2, ramp.Mean(), 1e-6)
}

func TestBlockChannels(t *testing.T) {
	b := signals.Block{Shape: signals.Shape{Frames: 2, Channels: 2}, Data: []float32{1, 3, 5, 7}}
	assert.Equal(t, []float32{4, 12}, b.SumChannels().Data)
	assert.Equal(t, []float32{2, 6}, b.MeanChannels().Data)
	assert.Equal(t, []float32{3, 7}, b.SelectChannel(1).Data)

	joined, err := signals.ConcatChannels(b, signals.ConstantBlock(9))
	require.NoError(t, err)
	assert.Equal(t, signals.Shape{Frames: 2, Channels: 3}, joined.Shape)
	assert.Equal(t, []float32{1, 3, 9, 5, 7, 9}, joined.Data)

	long, err := signals.ConcatFrames(b, b.Frames(0, 1))
	require.NoError(t, err)
	assert.Equal(t, signals.Shape{Frames: 3, Channels: 2}, long.Shape)
	assert.Equal(t, []float32{1, 3, 5, 7, 1, 3}, long.Data)

	_, err = signals.ConcatFrames(b, signals.Silence())
	assert.ErrorIs(t, err, signals.ErrIncompatibleShapes)
}

func TestMatrixJSON(t *testing.T) {
	var m signals.Matrix
	require.NoError(t, json.Unmarshal([]byte("[[1, 2, 3]]"), &m))
	assert.Equal(t, signals.Shape{Frames: 1, Channels: 3}, m.Shape())
	assert.Equal(t, []float32{1, 2, 3}, m.Block().Data)
	assert.Equal(t, m, signals.MatrixOf(m.Block()))

	for _, bad := range []string{"1", "[1, 2]", "[[1], [2, 3]]", `"x"`} {
		err := json.Unmarshal([]byte(bad), &m)
		assert.ErrorIs(t, err, signals.ErrNotMatrix, bad)
	}
}

func TestWavHeader(t *testing.T) {
	data, err := signals.Wav([]float32{0, 0.5, -0.5, 1}, 48000, 2, true)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("RIFF")))
	assert.Len(t, data, 44+4*2)
	assert.Equal(t, int16(-16383), signals.ToPCM16(-0.5))
	assert.Equal(t, int16(32767), signals.ToPCM16(2))
}
