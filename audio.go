package signals

type (
	// DeviceInfo describes an audio device as reported by an AudioContext.
	DeviceInfo struct {
		Name              string
		Index             int
		MaxInputChannels  int
		MaxOutputChannels int
		DefaultSampleRate float64
	}

	// StreamConfig is the format of a stream: frames are delivered in
	// callbacks of Frames frames of Channels interleaved float32 samples at
	// Rate frames per second.
	StreamConfig struct {
		Rate     int
		Channels int
		Frames   int
	}

	// FillFunc is called by an output stream each time it needs more audio.
	// out holds len(out)/channels interleaved frames and must be filled
	// completely.
	FillFunc func(out []float32)

	// ConsumeFunc is called by an input stream each time it has recorded
	// audio. in is only valid for the duration of the call.
	ConsumeFunc func(in []float32)

	// AudioContext is the boundary between the graph and the audio hardware.
	// Implementations drive output streams by calling FillFunc from their own
	// audio thread and deliver input through ConsumeFunc.
	AudioContext interface {
		Devices() ([]DeviceInfo, error)
		Play(dev DeviceInfo, cfg StreamConfig, fill FillFunc) (Stream, error)
		Record(dev DeviceInfo, cfg StreamConfig, consume ConsumeFunc) (Stream, error)
		Close() error
	}

	// Stream is a running or paused device stream.
	Stream interface {
		Start() error
		Stop() error
		Close() error
	}
)

// CanRecord reports whether the device has input channels.
func (d DeviceInfo) CanRecord() bool { return d.MaxInputChannels > 0 }

// CanPlay reports whether the device has output channels.
func (d DeviceInfo) CanPlay() bool { return d.MaxOutputChannels > 0 }
