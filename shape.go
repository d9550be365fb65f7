package signals

import "fmt"

type (
	// Shape is the rectangular extent of a block of audio: the number of
	// frames (time axis) and the number of channels.
	//
	// A dimension of length 1 is broadcastable: a block with 1 frame or 1
	// channel can answer a request for any number of frames or channels, and
	// the consumer broadcasts it.
	Shape struct {
		Frames   int
		Channels int
	}

	// BlockLoc tells where a block lives on the timeline: the absolute frame
	// position of its first frame, the sample rate, and its shape.
	BlockLoc struct {
		Position int
		Rate     int
		Shape    Shape
	}
)

// UnitShape returns the shape of a single sample on a single channel.
func UnitShape() Shape { return Shape{Frames: 1, Channels: 1} }

// Fits reports whether s is compatible as a subset of o: each axis of s is
// either 1 or equal to the corresponding axis of o.
func (s Shape) Fits(o Shape) bool {
	return (s.Frames == 1 || s.Frames == o.Frames) && (s.Channels == 1 || s.Channels == o.Channels)
}

// Covers is Fits with the operands swapped: o fits in s.
func (s Shape) Covers(o Shape) bool {
	return o.Fits(s)
}

// Size is the number of samples in a block of this shape.
func (s Shape) Size() int {
	return s.Frames * s.Channels
}

func (s Shape) String() string {
	return fmt.Sprintf("(%d, %d)", s.Frames, s.Channels)
}

// EndPosition is the position just after the last frame of the location.
func (l BlockLoc) EndPosition() int {
	return l.Position + l.Shape.Frames
}

// Timestamp is the position of the first frame in seconds.
func (l BlockLoc) Timestamp() float64 {
	return float64(l.Position) / float64(l.Rate)
}

// Resize returns the same location with a different number of frames.
func (l BlockLoc) Resize(frames int) BlockLoc {
	l.Shape.Frames = frames
	return l
}

// Reslice returns the same location with a different number of channels.
func (l BlockLoc) Reslice(channels int) BlockLoc {
	l.Shape.Channels = channels
	return l
}

// Before returns the n frames immediately preceding the location, clipped at
// position 0. The result has zero frames when the location starts at 0.
func (l BlockLoc) Before(n int) BlockLoc {
	return BlockLoc{
		Position: max(l.Position-n, 0),
		Rate:     l.Rate,
		Shape:    Shape{Frames: min(n, l.Position), Channels: l.Shape.Channels},
	}
}

// After returns the n frames immediately following the location.
func (l BlockLoc) After(n int) BlockLoc {
	return BlockLoc{
		Position: l.EndPosition(),
		Rate:     l.Rate,
		Shape:    Shape{Frames: n, Channels: l.Shape.Channels},
	}
}

// Within reports whether l lies inside o: same rate, a frame range contained
// in the frame range of o, and no more channels than o.
func (l BlockLoc) Within(o BlockLoc) bool {
	return l.Rate == o.Rate &&
		l.Position >= o.Position &&
		l.EndPosition() <= o.EndPosition() &&
		l.Shape.Channels <= o.Shape.Channels
}

func (l BlockLoc) String() string {
	return fmt.Sprintf("%d@%dHz%v", l.Position, l.Rate, l.Shape)
}
