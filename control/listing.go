package control

import (
	"io"
	"os"
	"path"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig"
	"github.com/vsariola/signals"
	"github.com/vsariola/signals/graph"
	"github.com/vsariola/signals/patch"
	"gopkg.in/yaml.v3"
)

var listings = template.Must(template.New("listings").Funcs(sprig.TxtFuncMap()).Parse(`
{{- define "classes" -}}
{{range .}}{{printf "%-12s" .Name}} {{.Flags | toString | lower | default "-"}}{{if .Ports}} [{{join " " .Ports}}]{{end}}
{{if .Doc}}    {{.Doc}}
{{end}}{{end}}
{{- end -}}

{{- define "devices" -}}
{{range .}}{{.Name | quote}} in:{{.MaxInputChannels}} out:{{.MaxOutputChannels}} {{printf "%.0f" .DefaultSampleRate}}Hz
{{else}}no devices
{{end}}
{{- end -}}

{{- define "history" -}}
{{range $i, $b := .}}{{add1 $i | printf "%3d"}} {{$b.ID | toString | trunc 8}} {{$b.Label | trunc 60}} ({{len $b.Commands}} {{if eq (len $b.Commands) 1}}command{{else}}commands{{end}})
{{else}}nothing to undo
{{end}}
{{- end -}}

{{- define "help" -}}
{{range .}}{{printf "%-8s" .Name}}{{printf "%-3s" .Symbol}} {{printf "%-32s" .Usage}} {{.Doc}}
{{end}}
{{- end -}}
`))

type helpEntry struct {
	Name, Symbol, Usage, Doc string
}

func helpEntries() []helpEntry {
	ret := make([]helpEntry, len(verbs))
	for i, v := range verbs {
		ret[i] = helpEntry{Name: v.name, Symbol: v.symbol, Usage: v.usage, Doc: v.doc}
	}
	return ret
}

// grep returns the classes whose name matches pattern, a glob when it has
// meta characters and a substring otherwise. Matching ignores case.
func grep(classes []*graph.Class, pattern string) ([]*graph.Class, error) {
	pattern = strings.ToLower(pattern)
	if !strings.ContainsAny(pattern, `*?[\`) {
		pattern = "*" + pattern + "*"
	}
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, syntaxError("bad pattern %q: %v", pattern, err)
	}
	var ret []*graph.Class
	for _, c := range classes {
		if ok, _ := path.Match(pattern, strings.ToLower(c.Name)); ok {
			ret = append(ret, c)
		}
	}
	return ret, nil
}

func devicesFor(devices []signals.DeviceInfo, output bool) []signals.DeviceInfo {
	var ret []signals.DeviceInfo
	for _, d := range devices {
		if (output && d.CanPlay()) || (!output && d.CanRecord()) {
			ret = append(ret, d)
		}
	}
	return ret
}

type (
	// Snapshot is the YAML export of a patch. It is meant for other tools;
	// patches are saved in the command language.
	Snapshot struct {
		Signals     []SnapshotSignal       `yaml:"signals"`
		Connections []patch.ConnectionInfo `yaml:"connections"`
	}

	SnapshotSignal struct {
		patch.SignalInfo `yaml:",inline"`
		State            map[string]any `yaml:"state"`
	}
)

// TakeSnapshot describes every signal of m with its full state.
func TakeSnapshot(m *patch.Map) (Snapshot, error) {
	var ret Snapshot
	for info := range m.Signals() {
		state := make(map[string]any, len(info.State))
		for k, raw := range info.State {
			var v any
			if err := yaml.Unmarshal(raw, &v); err != nil {
				return Snapshot{}, err
			}
			state[k] = v
		}
		ret.Signals = append(ret.Signals, SnapshotSignal{SignalInfo: info, State: state})
	}
	ret.Connections = m.Connections()
	return ret, nil
}

func writeSnapshot(s Snapshot, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return err
	}
	return enc.Close()
}

func exportSnapshot(s Snapshot, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := writeSnapshot(s, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
