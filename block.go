package signals

import (
	"errors"
	"fmt"

	"github.com/viterin/vek/vek32"
)

// Block is a rectangular buffer of samples. Data is stored frame-major (all
// channels of frame 0, then all channels of frame 1 and so on), which is also
// the interleaved layout audio devices expect.
type Block struct {
	Shape Shape
	Data  []float32
}

// ErrIncompatibleShapes is returned when two blocks cannot be broadcast to a
// common shape.
var ErrIncompatibleShapes = errors.New("incompatible block shapes")

// NewBlock returns a zeroed block of the given shape.
func NewBlock(s Shape) Block {
	return Block{Shape: s, Data: make([]float32, s.Size())}
}

// Silence returns the unit block with value zero. Unbound ports and disabled
// nodes answer every request with it.
func Silence() Block {
	return NewBlock(UnitShape())
}

// ConstantBlock returns a unit block holding v.
func ConstantBlock(v float32) Block {
	return Block{Shape: UnitShape(), Data: []float32{v}}
}

// Filled returns a block of shape s with every sample set to v.
func Filled(s Shape, v float32) Block {
	b := NewBlock(s)
	for i := range b.Data {
		b.Data[i] = v
	}
	return b
}

func (b Block) At(frame, channel int) float32 {
	return b.Data[frame*b.Shape.Channels+channel]
}

func (b Block) Set(frame, channel int, v float32) {
	b.Data[frame*b.Shape.Channels+channel] = v
}

// Frame returns the samples of one frame. The slice aliases the block.
func (b Block) Frame(i int) []float32 {
	c := b.Shape.Channels
	return b.Data[i*c : (i+1)*c]
}

// Frames returns the frames [lo, hi) of the block. The result aliases b.
func (b Block) Frames(lo, hi int) Block {
	c := b.Shape.Channels
	return Block{Shape: Shape{Frames: hi - lo, Channels: c}, Data: b.Data[lo*c : hi*c]}
}

// Channel copies one channel of the block into a new slice.
func (b Block) Channel(c int) []float32 {
	ret := make([]float32, b.Shape.Frames)
	for f := range ret {
		ret[f] = b.At(f, c)
	}
	return ret
}

// Clone returns a deep copy of the block.
func (b Block) Clone() Block {
	data := make([]float32, len(b.Data))
	copy(data, b.Data)
	return Block{Shape: b.Shape, Data: data}
}

// Broadcast expands the block to shape s by repeating its length-1 axes. The
// block is returned as is if it already has shape s.
func (b Block) Broadcast(s Shape) (Block, error) {
	if b.Shape == s {
		return b, nil
	}
	if !b.Shape.Fits(s) {
		return Block{}, fmt.Errorf("cannot broadcast %v to %v: %w", b.Shape, s, ErrIncompatibleShapes)
	}
	ret := NewBlock(s)
	for f := 0; f < s.Frames; f++ {
		sf := f
		if b.Shape.Frames == 1 {
			sf = 0
		}
		row := ret.Frame(f)
		if b.Shape.Channels == 1 {
			v := b.At(sf, 0)
			for c := range row {
				row[c] = v
			}
		} else {
			copy(row, b.Frame(sf))
		}
	}
	return ret, nil
}

// Union is the shape two blocks broadcast to when combined sample by sample.
// ok is false if an axis differs and neither side is 1.
func Union(a, b Shape) (s Shape, ok bool) {
	axis := func(x, y int) (int, bool) {
		switch {
		case x == y, y == 1:
			return x, true
		case x == 1:
			return y, true
		}
		return 0, false
	}
	f, okf := axis(a.Frames, b.Frames)
	c, okc := axis(a.Channels, b.Channels)
	return Shape{Frames: f, Channels: c}, okf && okc
}

func combine(a, b Block, op func(dst, src []float32)) (Block, error) {
	s, ok := Union(a.Shape, b.Shape)
	if !ok {
		return Block{}, fmt.Errorf("cannot combine %v with %v: %w", a.Shape, b.Shape, ErrIncompatibleShapes)
	}
	ret, err := a.Broadcast(s)
	if err != nil {
		return Block{}, err
	}
	if ret.Shape == a.Shape {
		ret = ret.Clone()
	}
	rhs, err := b.Broadcast(s)
	if err != nil {
		return Block{}, err
	}
	op(ret.Data, rhs.Data)
	return ret, nil
}

// Add returns a + b, broadcasting both operands to their union shape.
func Add(a, b Block) (Block, error) {
	return combine(a, b, vek32.Add_Inplace)
}

// Mul returns a * b sample by sample, broadcasting both operands.
func Mul(a, b Block) (Block, error) {
	return combine(a, b, vek32.Mul_Inplace)
}

// Scale returns a copy of the block multiplied by v.
func (b Block) Scale(v float32) Block {
	ret := b.Clone()
	vek32.MulNumber_Inplace(ret.Data, v)
	return ret
}

// Peak is the largest absolute sample value in the block.
func (b Block) Peak() float32 {
	if len(b.Data) == 0 {
		return 0
	}
	tmp := b.Clone()
	vek32.Abs_Inplace(tmp.Data)
	return vek32.Max(tmp.Data)
}

// Mean is the average of all samples in the block.
func (b Block) Mean() float32 {
	if len(b.Data) == 0 {
		return 0
	}
	return vek32.Mean(b.Data)
}

// SumChannels folds all channels into one by summing them frame by frame.
func (b Block) SumChannels() Block {
	ret := NewBlock(Shape{Frames: b.Shape.Frames, Channels: 1})
	for f := range ret.Data {
		ret.Data[f] = vek32.Sum(b.Frame(f))
	}
	return ret
}

// MeanChannels folds all channels into one by averaging them frame by frame.
func (b Block) MeanChannels() Block {
	ret := b.SumChannels()
	if b.Shape.Channels > 0 {
		vek32.MulNumber_Inplace(ret.Data, 1/float32(b.Shape.Channels))
	}
	return ret
}

// SelectChannel returns a single-channel block with the given channel of b.
func (b Block) SelectChannel(c int) Block {
	return Block{Shape: Shape{Frames: b.Shape.Frames, Channels: 1}, Data: b.Channel(c)}
}

// ConcatFrames joins blocks along the time axis. All blocks must have the
// same number of channels.
func ConcatFrames(blocks ...Block) (Block, error) {
	if len(blocks) == 0 {
		return Block{}, nil
	}
	s := Shape{Channels: blocks[0].Shape.Channels}
	for _, b := range blocks {
		if b.Shape.Channels != s.Channels {
			return Block{}, fmt.Errorf("cannot concatenate %v after %d channels: %w", b.Shape, s.Channels, ErrIncompatibleShapes)
		}
		s.Frames += b.Shape.Frames
	}
	ret := Block{Shape: s, Data: make([]float32, 0, s.Size())}
	for _, b := range blocks {
		ret.Data = append(ret.Data, b.Data...)
	}
	return ret, nil
}

// ConcatChannels joins blocks side by side. Blocks with a single frame are
// broadcast to the frame count of the others.
func ConcatChannels(blocks ...Block) (Block, error) {
	frames := 1
	channels := 0
	for _, b := range blocks {
		if b.Shape.Frames != 1 {
			if frames != 1 && frames != b.Shape.Frames {
				return Block{}, fmt.Errorf("cannot stack %v next to %d frames: %w", b.Shape, frames, ErrIncompatibleShapes)
			}
			frames = b.Shape.Frames
		}
		channels += b.Shape.Channels
	}
	ret := NewBlock(Shape{Frames: frames, Channels: channels})
	offset := 0
	for _, b := range blocks {
		for f := 0; f < frames; f++ {
			sf := f
			if b.Shape.Frames == 1 {
				sf = 0
			}
			copy(ret.Frame(f)[offset:], b.Frame(sf))
		}
		offset += b.Shape.Channels
	}
	return ret, nil
}
