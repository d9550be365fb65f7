package control_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vsariola/signals"
	"github.com/vsariola/signals/control"
	"github.com/vsariola/signals/device"
	"github.com/vsariola/signals/graph"
	"github.com/vsariola/signals/nodes"
	"github.com/vsariola/signals/patch"
	"gopkg.in/yaml.v3"
)

var at = signals.MustParseCoordinates

type session struct {
	*control.Controller
	m    *patch.Map
	out  *bytes.Buffer
	rack *device.Rack
}

func newSession(t *testing.T, opts ...control.Option) *session {
	t.Helper()
	rack := device.NewRack(&device.Null{}, signals.StreamConfig{Rate: 100, Channels: 2, Frames: 4})
	r := graph.NewRegistry()
	require.NoError(t, nodes.Register(r))
	require.NoError(t, r.Register(rack.Classes()...))
	m := patch.New(graph.New(), r, patch.WithDevices(rack))
	out := &bytes.Buffer{}
	opts = append([]control.Option{control.WithOutput(out), control.WithDevices(rack)}, opts...)
	return &session{Controller: control.New(control.Local{Map: m}, opts...), m: m, out: out, rack: rack}
}

func (s *session) exec(t *testing.T, lines ...string) {
	t.Helper()
	for _, l := range lines {
		require.NoError(t, s.Execute(l), l)
	}
}

func (s *session) dump(t *testing.T) string {
	t.Helper()
	text, err := s.Dump()
	require.NoError(t, err)
	return text
}

func requireCommandError(t *testing.T, kind control.CommandErrorKind, err error) *control.CommandError {
	t.Helper()
	var e *control.CommandError
	require.ErrorAs(t, err, &e)
	require.Equal(t, kind, e.Kind, "error: %v", err)
	return e
}

func TestUndoRedo(t *testing.T) {
	s := newSession(t)
	s.exec(t, "+ 1a Sine", "add 1b Fixed value=[[3]]", "con 1b 1a.hertz")
	want := "+ 1a Sine\n+ 1b Fixed value=[[3]]\n> 1b 1a.hertz\n"
	require.Equal(t, want, s.dump(t))

	s.exec(t, "undo 3")
	assert.Equal(t, 0, s.m.Len())
	assert.Empty(t, s.m.Connections())
	requireCommandError(t, control.BadUndo, s.Execute("undo"))

	s.exec(t, "redo", "redo 2")
	assert.Equal(t, want, s.dump(t))
	require.NoError(t, s.m.Verify())
	requireCommandError(t, control.BadRedo, s.Execute("redo"))

	s.exec(t, "undo", "- 1a")
	requireCommandError(t, control.BadRedo, s.Execute("redo"))
	s.exec(t, "undo")
	assert.Equal(t, "+ 1a Sine\n+ 1b Fixed value=[[3]]\n", s.dump(t))
}

func TestUndoRestoresEveryCommand(t *testing.T) {
	s := newSession(t)
	s.exec(t, "sink 1a null", "+ 2a Sine", "+ 2b Fixed value=[[2]]", "+ 2c Select", "> 2b 2a.hertz", "> 2a 1a.input")
	before := s.dump(t)
	for _, line := range []string{
		"- 2a",
		"- 1a",
		"* 2c index=3 enabled=false",
		"= 2a 3a",
		"= 2a 2b",
		"> 2c 2a.phase",
		"> 2c 2a.hertz",
		">/ 2a.hertz",
		"init",
	} {
		s.exec(t, line)
		require.NotEqual(t, before, s.dump(t), line)
		s.exec(t, "undo")
		require.Equal(t, before, s.dump(t), line)
		require.NoError(t, s.m.Verify(), line)
	}
}

func TestBatchIsAtomic(t *testing.T) {
	s := newSession(t)
	b := control.NewBatch("test",
		control.Add{At: at("1a"), Class: "Sine"},
		control.Add{At: at("1a"), Class: "Square"},
	)
	err := s.Do(b)
	assert.Equal(t, patch.NonEmpty, patch.KindOf(err))
	assert.Equal(t, 0, s.m.Len())
	requireCommandError(t, control.BadUndo, s.Execute("undo"))

	s.exec(t, "+ 1a Fixed", "+ 1b Sine", "> 1a 1b.hertz")
	before := s.dump(t)
	b = control.NewBatch("test",
		control.Rm{At: at("1a")},
		control.Mv{From: at("1b"), To: at("2b")},
		control.Add{At: at("1a"), Class: "Sawtooth"},
		control.Edit{At: at("2b"), Values: map[string]json.RawMessage{"enabled": json.RawMessage("false")}},
		control.Add{At: at("2b"), Class: "Square"},
	)
	require.Error(t, s.Do(b))
	assert.Equal(t, before, s.dump(t))
	require.NoError(t, s.m.Verify())
}

func TestEditWithUnknownFieldChangesNothing(t *testing.T) {
	s := newSession(t)
	s.exec(t, "+ 1a Select index=1")
	before := s.dump(t)
	err := s.Execute("* 1a index=2 volume=1")
	e := &patch.MapError{}
	require.ErrorAs(t, err, &e)
	assert.Equal(t, patch.BadProperty, e.Kind)
	assert.Equal(t, []string{"enabled", "index"}, e.Options)
	assert.Equal(t, before, s.dump(t))
	s.exec(t, "undo")
	assert.Equal(t, 0, s.m.Len(), "the failed edit is not in the history")
}

func TestSaveAndLoad(t *testing.T) {
	s := newSession(t)
	assert.False(t, s.Unsaved())
	s.exec(t,
		"sink 1a null",
		"source 1b null enabled=false",
		"+ 2a Sine",
		"+ 2b Fixed 'value=[[1,2]]'",
		"+ 2c FileWriter 'path=/tmp/take one.wav'",
		"+ 3a Mix",
		"> 2b 2a.hertz",
		"> 2a 3a.left",
		"> 1b 3a.right",
		"> 3a 2c.input",
		"> 2c 1a.input",
	)
	assert.True(t, s.Unsaved())
	want := strings.Join([]string{
		"source 1b null enabled=false",
		"sink 1a null",
		"+ 2a Sine",
		"+ 2b Fixed value=[[1,2]]",
		"+ 2c FileWriter 'path=/tmp/take one.wav'",
		"+ 3a Mix",
		"> 2c 1a.input",
		"> 2b 2a.hertz",
		"> 3a 2c.input",
		"> 2a 3a.left",
		"> 1b 3a.right",
	}, "\n") + "\n"
	require.Equal(t, want, s.dump(t))

	path := filepath.Join(t.TempDir(), "patch.sig")
	s.exec(t, "save "+path)
	assert.False(t, s.Unsaved())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, want, string(data))

	loaded := newSession(t)
	require.NoError(t, loaded.Load(path))
	assert.Equal(t, want, loaded.dump(t))
	assert.False(t, loaded.Unsaved())
	h1, err := s.Hash()
	require.NoError(t, err)
	h2, err := loaded.Hash()
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)

	loaded.exec(t, "undo")
	assert.Equal(t, 0, loaded.m.Len(), "a load is one batch")
	assert.True(t, loaded.Unsaved())
}

func TestLoadIsAllOrNothing(t *testing.T) {
	s := newSession(t)
	s.exec(t, "+ 1a Sine")
	path := filepath.Join(t.TempDir(), "bad.sig")
	require.NoError(t, os.WriteFile(path, []byte("+ 2a Sine\n+ 1a Square\n"), 0o644))
	assert.Equal(t, patch.NonEmpty, patch.KindOf(s.Load(path)))
	assert.Equal(t, "+ 1a Sine\n", s.dump(t))

	require.NoError(t, os.WriteFile(path, []byte("+ 2a Sine\nshow\n"), 0o644))
	e := requireCommandError(t, control.BadCommand, s.Load(path))
	assert.Equal(t, 2, e.Line)
	assert.Equal(t, "+ 1a Sine\n", s.dump(t))
}

func TestReload(t *testing.T) {
	s := newSession(t)
	s.exec(t, "+ 1a Sine", "+ 1b Fixed", "> 1b 1a.hertz")
	before := s.dump(t)
	path := filepath.Join(t.TempDir(), "patch.sig")
	require.NoError(t, os.WriteFile(path, []byte("+ 1a Square\n"), 0o644))
	require.NoError(t, s.Reload(path))
	assert.Equal(t, "+ 1a Square\n", s.dump(t))
	s.exec(t, "undo")
	assert.Equal(t, before, s.dump(t))
}

func TestRun(t *testing.T) {
	script := "+ 1a Sine\n# comment\n\n+ 1a Sine\n+ 1b Sine\n"
	s := newSession(t)
	err := s.Run(context.Background(), strings.NewReader(script))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 4")
	assert.Equal(t, 1, s.m.Len())

	s = newSession(t, control.WithInteractive(true))
	require.NoError(t, s.Run(context.Background(), strings.NewReader(script+"exit\n+ 1c Sine\n")))
	assert.Equal(t, 2, s.m.Len())
	assert.Contains(t, s.out.String(), "error: NonEmpty at 1a")
	assert.Contains(t, s.out.String(), "unsaved changes")
}

func TestRecovery(t *testing.T) {
	file := filepath.Join(t.TempDir(), "Signals", "recovery.sig")
	s := newSession(t, control.WithRecoveryFile(file))
	require.NoError(t, s.SaveRecovery())
	assert.NoFileExists(t, file, "nothing to recover")

	s.exec(t, "+ 1a Sine", "+ 1b Fixed value=[[5]]", "> 1b 1a.hertz")
	require.NoError(t, s.SaveRecovery())
	require.FileExists(t, file)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, s.RunRecovery(ctx, 1000))

	recovered := newSession(t, control.WithRecoveryFile(file))
	require.NoError(t, recovered.Recover())
	assert.Equal(t, s.dump(t), recovered.dump(t))
	assert.True(t, recovered.Unsaved())

	require.NoError(t, newSession(t, control.WithRecoveryFile(file+".missing")).Recover())
}

func TestTransport(t *testing.T) {
	s := newSession(t)
	s.exec(t, "sink 1a null", "+ 2a Sine")
	sink, err := s.m.Sink(at("1a"))
	require.NoError(t, err)

	s.exec(t, "play 1a", "seek 1a 50")
	assert.Equal(t, device.PlaybackState{Position: 50, Active: true}, sink.Playback())
	s.exec(t, "pause 1a")
	assert.False(t, sink.Playback().Active)
	s.exec(t, "play 1a", "stop 1a")
	assert.Equal(t, device.PlaybackState{}, sink.Playback())

	assert.Equal(t, patch.BadPlaybackTarget, patch.KindOf(s.Execute("play 2a")))
	requireCommandError(t, control.BadCommandSyntax, s.Execute("seek 1a soon"))
}

func TestScope(t *testing.T) {
	s := newSession(t)
	s.exec(t, "+ 1a Fixed value=[[0.5]]", "+ 1b Scope", "> 1a 1b.input")
	s.exec(t, "scope 1b")
	assert.Equal(t, "no blocks\n", s.out.String())

	h, _ := s.m.Handle(at("1b"))
	loc := signals.BlockLoc{Rate: 100, Shape: signals.Shape{Frames: 4, Channels: 1}}
	for range 2 {
		_, err := s.m.Graph().Pull(h, loc)
		require.NoError(t, err)
		loc.Position += 4
	}
	s.out.Reset()
	s.exec(t, "scope 1b")
	assert.Equal(t, "2 blocks, frames 0 to 8 at 100Hz, peak 0.500, mean of last 0.500\n", s.out.String())
	assert.Equal(t, patch.BadSignal, patch.KindOf(s.Execute("scope 1a")))
}

func TestListings(t *testing.T) {
	s := newSession(t)
	s.exec(t, "classes")
	assert.Contains(t, s.out.String(), "Sine")
	assert.Contains(t, s.out.String(), "[sclock hertz phase]")

	s.out.Reset()
	s.exec(t, "grep SAW")
	assert.Contains(t, s.out.String(), "Sawtooth")
	assert.NotContains(t, s.out.String(), "Sine")

	s.out.Reset()
	s.exec(t, "sinks")
	assert.Equal(t, "\"null\" in:2 out:2 44100Hz\n", s.out.String())

	s.out.Reset()
	s.exec(t, "+ 1a Sine", "history")
	assert.Contains(t, s.out.String(), "+ 1a Sine (1 command)")

	s.out.Reset()
	s.exec(t, "help")
	assert.Contains(t, s.out.String(), "discon")
}

func TestExport(t *testing.T) {
	s := newSession(t)
	s.exec(t, "+ 1a Sine", "+ 1b Fixed value=[[2]]", "> 1b 1a.hertz")
	path := filepath.Join(t.TempDir(), "patch.yaml")
	s.exec(t, "export "+path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var snap control.Snapshot
	require.NoError(t, yaml.Unmarshal(data, &snap))
	require.Len(t, snap.Signals, 2)
	assert.Equal(t, at("1b"), snap.Signals[1].At)
	assert.Equal(t, "Fixed", snap.Signals[1].Class)
	assert.Equal(t, []any{[]any{2}}, snap.Signals[1].State["value"])
	assert.Equal(t, s.m.Connections(), snap.Connections)
}

func TestExit(t *testing.T) {
	s := newSession(t)
	assert.True(t, errors.Is(s.Execute("exit"), control.ErrExit))
}

// stoppedEngine fails every job without running it.
type stoppedEngine struct{}

var errStopped = errors.New("engine stopped")

func (stoppedEngine) Exec(func(*patch.Map) error) error { return errStopped }

func TestListingsReportExecutorErrors(t *testing.T) {
	out := &bytes.Buffer{}
	c := control.New(stoppedEngine{}, control.WithOutput(out))
	for _, line := range []string{"history", "classes", "grep Sine"} {
		assert.ErrorIs(t, c.Execute(line), errStopped, line)
	}
	assert.Empty(t, out.String())
}
