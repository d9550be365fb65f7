package graph

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/vsariola/signals"
	"golang.org/x/text/cases"
)

type (
	// Class describes a kind of node: its name in patches, its flags, its
	// ports and how to construct instances. Device classes construct their
	// instances with Open instead of New.
	Class struct {
		Name  string
		Doc   string
		Flags signals.Flags
		Ports []string
		New   func() Node
		Open  func(dev signals.DeviceInfo) (Node, error)
	}

	// Registry is the closed set of classes a patch can refer to by name.
	// Lookups ignore case.
	Registry struct {
		classes map[string]*Class
	}
)

// Emits reports whether instances of the class answer requests. Sinks only
// consume.
func (c *Class) Emits() bool {
	return !c.Flags.Has(signals.SinkDevice)
}

// Receives reports whether the class has ports.
func (c *Class) Receives() bool {
	return len(c.Ports) > 0
}

// IsDevice reports whether the class is bound to an audio device.
func (c *Class) IsDevice() bool {
	return c.Flags.Any(signals.Device)
}

// HasPort reports whether name is one of the ports of the class.
func (c *Class) HasPort(name string) bool {
	return slices.Contains(c.Ports, name)
}

func (c *Class) portError(name string) error {
	return &BadPortError{Class: c.Name, Port: name, Options: slices.Sorted(slices.Values(c.Ports))}
}

func (c *Class) validate() error {
	if c.Name == "" {
		return errors.New("class without a name")
	}
	if err := c.Flags.Validate(); err != nil {
		return &BadFlagsError{Class: c.Name, Err: err}
	}
	if c.IsDevice() != (c.Open != nil) || c.IsDevice() == (c.New != nil) {
		return fmt.Errorf("class %q: device classes need Open, other classes need New", c.Name)
	}
	if c.Flags.Has(signals.PassThru) && !c.HasPort("input") {
		return &BadFlagsError{Class: c.Name, Err: fmt.Errorf("%w: PASSTHRU without an input port", signals.ErrBadFlags)}
	}
	seen := map[string]bool{}
	for _, p := range c.Ports {
		if p == "" || seen[p] {
			return fmt.Errorf("class %q: invalid or duplicate port %q", c.Name, p)
		}
		seen[p] = true
	}
	return nil
}

func NewRegistry() *Registry {
	return &Registry{classes: map[string]*Class{}}
}

func foldName(name string) string {
	return cases.Fold().String(name)
}

// Register adds classes to the registry. Flags and ports are validated here,
// once, rather than for each instance.
func (r *Registry) Register(classes ...*Class) error {
	for _, c := range classes {
		if err := c.validate(); err != nil {
			return err
		}
		key := foldName(c.Name)
		if _, ok := r.classes[key]; ok {
			return fmt.Errorf("class %q registered twice", c.Name)
		}
		r.classes[key] = c
	}
	return nil
}

// MustRegister is like Register but panics on error. Meant for init time.
func (r *Registry) MustRegister(classes ...*Class) {
	if err := r.Register(classes...); err != nil {
		panic(err)
	}
}

// Lookup finds a class by name.
func (r *Registry) Lookup(name string) (*Class, error) {
	if c, ok := r.classes[foldName(name)]; ok {
		return c, nil
	}
	return nil, &BadClassError{Name: name, Options: r.Names()}
}

// Names returns the names of all classes in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.classes))
	for _, c := range r.classes {
		names = append(names, c.Name)
	}
	sort.Strings(names)
	return names
}

// Classes returns all classes sorted by name.
func (r *Registry) Classes() []*Class {
	ret := make([]*Class, 0, len(r.classes))
	for _, c := range r.classes {
		ret = append(ret, c)
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].Name < ret[j].Name })
	return ret
}
