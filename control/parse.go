package control

import (
	"bufio"
	"encoding/json"
	"errors"
	"maps"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"github.com/google/shlex"
	"github.com/vsariola/signals"
	"github.com/vsariola/signals/patch"
)

type (
	// Statement is one parsed line of the command language. Command is set
	// for statements that mutate the Map; the others are carried out by the
	// Controller.
	Statement struct {
		Verb    string
		Args    []string
		Command Command
	}

	verb struct {
		name   string
		symbol string
		usage  string
		doc    string
		min    int
		max    int // -1 for any number
		parse  func(args []string) (Command, error)
	}
)

var verbs = []verb{
	{name: "add", symbol: "+", usage: "<at> <class> [field=value...]", doc: "create a signal", min: 2, max: -1, parse: parseAdd},
	{name: "rm", symbol: "-", usage: "<at>", doc: "remove a signal and its connections", min: 1, max: 1, parse: parseRm},
	{name: "ed", symbol: "*", usage: "<at> field=value...", doc: "edit the state of a signal", min: 2, max: -1, parse: parseEdit},
	{name: "mv", symbol: "=", usage: "<at> <at>", doc: "move a signal, swapping if the target is taken", min: 2, max: 2, parse: parseMv},
	{name: "con", symbol: ">", usage: "<input_at> <output_at.port>", doc: "connect a signal to a port", min: 2, max: 2, parse: parseConnect},
	{name: "discon", symbol: ">/", usage: "<output_at.port>", doc: "disconnect a port", min: 1, max: 1, parse: parseDisconnect},
	{name: "source", usage: "<at> <device> [field=value...]", doc: "open an input device", min: 2, max: -1, parse: parseDevice(false)},
	{name: "sink", usage: "<at> <device> [field=value...]", doc: "open an output device", min: 2, max: -1, parse: parseDevice(true)},
	{name: "init", doc: "remove everything", max: 0},
	{name: "undo", usage: "[times]", doc: "undo the last changes", max: 1},
	{name: "redo", usage: "[times]", doc: "redo undone changes", max: 1},
	{name: "history", doc: "list the changes that can be undone", max: 0},
	{name: "load", usage: "<path>", doc: "run a patch file", min: 1, max: 1},
	{name: "save", usage: "<path>", doc: "write the patch to a file", min: 1, max: 1},
	{name: "export", usage: "<path>", doc: "write a YAML snapshot of the patch", min: 1, max: 1},
	{name: "show", doc: "print the patch", max: 0},
	{name: "hash", doc: "print the hash of the patch", max: 0},
	{name: "play", usage: "<at>", doc: "start a sink", min: 1, max: 1},
	{name: "pause", usage: "<at>", doc: "pause a sink", min: 1, max: 1},
	{name: "stop", usage: "<at>", doc: "pause a sink and rewind it", min: 1, max: 1},
	{name: "seek", usage: "<at> <frame>", doc: "move the playback position of a sink", min: 2, max: 2},
	{name: "scope", usage: "<at>", doc: "summarize the blocks seen by a scope", min: 1, max: 1},
	{name: "classes", doc: "list the signal classes", max: 0},
	{name: "grep", usage: "<pattern>", doc: "list the signal classes matching a pattern", min: 1, max: 1},
	{name: "sources", doc: "list the input devices", max: 0},
	{name: "sinks", doc: "list the output devices", max: 0},
	{name: "help", doc: "list the commands", max: 0},
	{name: "exit", doc: "leave", max: 0},
}

func lookupVerb(word string) (*verb, bool) {
	for i := range verbs {
		if verbs[i].name == word || (verbs[i].symbol != "" && verbs[i].symbol == word) {
			return &verbs[i], true
		}
	}
	return nil, false
}

func verbNames() []string {
	ret := make([]string, 0, len(verbs))
	for _, v := range verbs {
		ret = append(ret, v.name)
	}
	slices.Sort(ret)
	return ret
}

// Parse parses a line of the command language. ok is false for blank lines
// and comments.
func Parse(line string) (st Statement, ok bool, err error) {
	tokens, err := tokenize(line)
	if err != nil {
		return Statement{}, false, &CommandError{Kind: BadCommandSyntax, Err: err}
	}
	if len(tokens) == 0 {
		return Statement{}, false, nil
	}
	v, found := lookupVerb(tokens[0])
	if !found {
		return Statement{}, false, &CommandError{Kind: BadCommand, Err: errors.New("unknown command " + strconv.Quote(tokens[0])), Options: verbNames()}
	}
	args := tokens[1:]
	if len(args) < v.min || (v.max >= 0 && len(args) > v.max) {
		return Statement{}, false, syntaxError("usage: %s %s", v.name, v.usage)
	}
	st = Statement{Verb: v.name, Args: args}
	if v.parse != nil {
		if st.Command, err = v.parse(args); err != nil {
			return Statement{}, false, err
		}
	}
	return st, true, nil
}

// ParseScript parses a patch file. Only commands that mutate the Map are
// allowed in one.
func ParseScript(text string) ([]Command, error) {
	var ret []Command
	scanner := bufio.NewScanner(strings.NewReader(text))
	for n := 1; scanner.Scan(); n++ {
		st, ok, err := Parse(scanner.Text())
		if err != nil {
			var ce *CommandError
			if errors.As(err, &ce) {
				ce.Line = n
			}
			return nil, err
		}
		if !ok {
			continue
		}
		if st.Command == nil {
			return nil, &CommandError{Kind: BadCommand, Line: n, Err: errors.New(st.Verb + " is not allowed in a patch file")}
		}
		ret = append(ret, st.Command)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

func parseAt(s string) (signals.Coordinates, error) {
	at, err := signals.ParseCoordinates(s)
	if err != nil {
		return signals.Coordinates{}, &CommandError{Kind: BadCommandSyntax, Err: err}
	}
	return at, nil
}

func parsePort(s string) (patch.PortInfo, error) {
	atText, port, found := strings.Cut(s, ".")
	if !found || port == "" {
		return patch.PortInfo{}, syntaxError("%q is not of the form <at>.<port>", s)
	}
	at, err := parseAt(atText)
	if err != nil {
		return patch.PortInfo{}, err
	}
	return patch.PortInfo{At: at, Port: port}, nil
}

func parseValues(args []string) (map[string]json.RawMessage, error) {
	if len(args) == 0 {
		return nil, nil
	}
	ret := make(map[string]json.RawMessage, len(args))
	for _, a := range args {
		key, value, found := strings.Cut(a, "=")
		if !found || key == "" {
			return nil, syntaxError("%q is not of the form field=value", a)
		}
		if _, ok := ret[key]; ok {
			return nil, syntaxError("field %q given twice", key)
		}
		ret[key] = parseValue(value)
	}
	return ret, nil
}

// parseValue reads a JSON literal. Anything that is not valid JSON is taken
// as a string.
func parseValue(text string) json.RawMessage {
	if json.Valid([]byte(text)) {
		return json.RawMessage(text)
	}
	s, _ := json.Marshal(text)
	return s
}

// formatValue is the inverse of parseValue.
func formatValue(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil && s != "" && !json.Valid([]byte(s)) {
		return s
	}
	return string(raw)
}

func formatValues(values map[string]json.RawMessage) []string {
	ret := make([]string, 0, len(values))
	for _, k := range slices.Sorted(maps.Keys(values)) {
		ret = append(ret, k+"="+formatValue(values[k]))
	}
	return ret
}

func parseAdd(args []string) (Command, error) {
	at, err := parseAt(args[0])
	if err != nil {
		return nil, err
	}
	values, err := parseValues(args[2:])
	if err != nil {
		return nil, err
	}
	return Add{At: at, Class: args[1], Values: values}, nil
}

func parseDevice(output bool) func([]string) (Command, error) {
	return func(args []string) (Command, error) {
		at, err := parseAt(args[0])
		if err != nil {
			return nil, err
		}
		values, err := parseValues(args[2:])
		if err != nil {
			return nil, err
		}
		return AddDevice{At: at, Output: output, Device: args[1], Values: values}, nil
	}
}

func parseRm(args []string) (Command, error) {
	at, err := parseAt(args[0])
	if err != nil {
		return nil, err
	}
	return Rm{At: at}, nil
}

func parseEdit(args []string) (Command, error) {
	at, err := parseAt(args[0])
	if err != nil {
		return nil, err
	}
	values, err := parseValues(args[1:])
	if err != nil {
		return nil, err
	}
	return Edit{At: at, Values: values}, nil
}

func parseMv(args []string) (Command, error) {
	from, err := parseAt(args[0])
	if err != nil {
		return nil, err
	}
	to, err := parseAt(args[1])
	if err != nil {
		return nil, err
	}
	return Mv{From: from, To: to}, nil
}

func parseConnect(args []string) (Command, error) {
	in, err := parseAt(args[0])
	if err != nil {
		return nil, err
	}
	out, err := parsePort(args[1])
	if err != nil {
		return nil, err
	}
	return Connect{InputAt: in, Output: out}, nil
}

func parseDisconnect(args []string) (Command, error) {
	out, err := parsePort(args[0])
	if err != nil {
		return nil, err
	}
	return Disconnect{Output: out}, nil
}

// tokenize splits a line into words with shell quoting rules. A # at the
// start of a word begins a comment.
func tokenize(line string) ([]string, error) {
	return shlex.Split(line)
}

// quoteToken is the inverse of tokenize for a single word.
func quoteToken(s string) string {
	if s != "" && !strings.ContainsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune(`'"\#`, r)
	}) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func joinTokens(tokens ...string) string {
	quoted := make([]string, len(tokens))
	for i, t := range tokens {
		quoted[i] = quoteToken(t)
	}
	return strings.Join(quoted, " ")
}
