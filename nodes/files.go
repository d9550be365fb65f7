package nodes

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/vsariola/signals"
	"github.com/vsariola/signals/graph"
)

type (
	FileState struct {
		graph.EmitterState
		Path string `json:"path"`
	}

	// FileReader plays a wav file from position 0. Frames past the end of
	// the file are silent. Files at another sample rate are resampled
	// linearly.
	FileReader struct {
		graph.Stateful[FileState]
		path     string
		rate     int
		channels int
		frames   int
		samples  []float32
	}

	// FileWriter passes its input through and records every frame it has not
	// seen before into a 16-bit wav file. Gaps are recorded as silence and
	// frames before the recorded position are not rewritten. The file is
	// finalized when the node is removed or its path changes.
	FileWriter struct {
		graph.Stateful[FileState]
		f        *os.File
		enc      *wav.Encoder
		path     string
		rate     int
		channels int
		next     int
	}
)

var (
	FileReaderClass = &graph.Class{
		Name:  "FileReader",
		Doc:   "wav file playback",
		Flags: signals.Generator | signals.Epoch,
		New: func() graph.Node {
			return &FileReader{Stateful: graph.WithState(FileState{EmitterState: graph.DefaultEmitter()})}
		},
	}
	FileWriterClass = &graph.Class{
		Name:  "FileWriter",
		Doc:   "records its input to a wav file",
		Flags: signals.PassThru | signals.Recorder,
		Ports: []string{"input"},
		New: func() graph.Node {
			return &FileWriter{Stateful: graph.WithState(FileState{EmitterState: graph.DefaultEmitter()})}
		},
	}
)

var ErrBadWav = errors.New("invalid wav file")

func (r *FileReader) load() error {
	path := r.Get().Path
	if path == r.path && (r.samples != nil || path == "") {
		return nil
	}
	r.path, r.samples, r.frames, r.channels = path, nil, 0, 1
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return fmt.Errorf("%s: %w", path, ErrBadWav)
	}
	if err := decoder.FwdToPCM(); err != nil {
		return err
	}
	format := decoder.Format()
	bitDepth := int(decoder.SampleBitDepth())
	if bitDepth == 0 || format.NumChannels == 0 {
		return fmt.Errorf("%s: unknown bit depth or channel count: %w", path, ErrBadWav)
	}
	bytesPerSample := (bitDepth-1)/8 + 1
	nsamples := int(decoder.PCMLen()) / bytesPerSample
	buf := &audio.IntBuffer{
		Format:         format,
		Data:           make([]int, nsamples),
		SourceBitDepth: bitDepth,
	}
	n, err := decoder.PCMBuffer(buf)
	if err != nil {
		return err
	}
	floatBuf := buf.AsFloatBuffer()
	factor := math.Pow(2, float64(bitDepth-1))
	nframes := n / format.NumChannels
	samples := make([]float32, nframes*format.NumChannels)
	for i := range samples {
		samples[i] = float32(floatBuf.Data[i] / factor)
	}
	slog.Debug("decoded wav file", "path", path, "rate", format.SampleRate, "channels", format.NumChannels, "bitDepth", bitDepth, "frames", nframes)
	r.rate, r.channels, r.frames, r.samples = format.SampleRate, format.NumChannels, nframes, samples
	return nil
}

// Frames is the length of the loaded file in its own sample rate.
func (r *FileReader) Frames() (int, error) {
	if err := r.load(); err != nil {
		return 0, err
	}
	return r.frames, nil
}

func (r *FileReader) sample(frame, channel int) float32 {
	if frame < 0 || frame >= r.frames {
		return 0
	}
	return r.samples[frame*r.channels+channel]
}

func (r *FileReader) Eval(in *graph.Inputs, req graph.Request) (signals.Block, error) {
	if err := r.load(); err != nil {
		return signals.Block{}, err
	}
	if r.samples == nil {
		return signals.Silence(), nil
	}
	loc := req.Loc
	b := signals.NewBlock(signals.Shape{Frames: loc.Shape.Frames, Channels: r.channels})
	step := float64(r.rate) / float64(loc.Rate)
	for f := 0; f < loc.Shape.Frames; f++ {
		pos := float64(loc.Position+f) * step
		i := int(pos)
		frac := float32(pos - float64(i))
		row := b.Frame(f)
		for c := range row {
			a := r.sample(i, c)
			if frac == 0 {
				row[c] = a
				continue
			}
			row[c] = a + (r.sample(i+1, c)-a)*frac
		}
	}
	return b, nil
}

func (r *FileReader) Channels(in *graph.Inputs) (int, error) {
	if err := r.load(); err != nil {
		return 0, err
	}
	return r.channels, nil
}

func (w *FileWriter) Eval(in *graph.Inputs, req graph.Request) (signals.Block, error) {
	b, err := in.Port("input").Forward(req)
	if err != nil {
		return signals.Block{}, err
	}
	if err := w.record(b, req.Loc); err != nil {
		return signals.Block{}, err
	}
	return b, nil
}

func (w *FileWriter) Channels(in *graph.Inputs) (int, error) {
	return naturalChannels(in.Port("input"))
}

func (w *FileWriter) record(b signals.Block, loc signals.BlockLoc) error {
	path := w.Get().Path
	if path != w.path {
		if err := w.Destroy(); err != nil {
			return err
		}
		w.path = path
	}
	if path == "" || loc.EndPosition() <= w.next {
		return nil
	}
	if w.enc == nil {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		w.f, w.rate, w.channels, w.next = f, loc.Rate, loc.Shape.Channels, 0
		w.enc = wav.NewEncoder(f, w.rate, 16, w.channels, 1)
	}
	if loc.Rate != w.rate || loc.Shape.Channels != w.channels {
		return fmt.Errorf("recording %s at %dHz with %d channels, got %v", path, w.rate, w.channels, loc)
	}
	full, err := b.Broadcast(loc.Shape)
	if err != nil {
		return err
	}
	start := max(w.next, loc.Position)
	frames := loc.EndPosition() - w.next
	data := make([]int, 0, frames*w.channels)
	for range start - w.next {
		for range w.channels {
			data = append(data, 0)
		}
	}
	for _, v := range full.Frames(start-loc.Position, loc.Shape.Frames).Data {
		data = append(data, int(signals.ToPCM16(v)))
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: w.channels, SampleRate: w.rate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := w.enc.Write(buf); err != nil {
		return err
	}
	w.next = loc.EndPosition()
	return nil
}

// Recorded is the number of frames written to the current file.
func (w *FileWriter) Recorded() int { return w.next }

// Destroy finalizes the current file, if any.
func (w *FileWriter) Destroy() error {
	if w.enc == nil {
		return nil
	}
	err := w.enc.Close()
	if cerr := w.f.Close(); err == nil {
		err = cerr
	}
	slog.Debug("closed wav file", "path", w.path, "frames", w.next)
	w.enc, w.f, w.next = nil, nil, 0
	return err
}
