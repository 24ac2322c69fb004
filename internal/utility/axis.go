// Package utility implements utility-based decision making: input axes,
// considerations with normalization and response curves, behaviors that
// combine consideration scores, and the per-agent decision loop.
package utility

import (
	"fmt"
	"strings"
)

// Origin says where an input axis reads its raw value from.
type Origin uint8

const (
	OriginComputed         Origin = iota // Geometric quantity supplied by the input broker
	OriginPropertyOfSelf                 // Named property of the thinking agent
	OriginPropertyOfTarget               // Named property of the target
)

var originNames = [...]string{
	OriginComputed:         "computed",
	OriginPropertyOfSelf:   "self",
	OriginPropertyOfTarget: "target",
}

func (o Origin) String() string {
	if int(o) < len(originNames) {
		return originNames[o]
	}
	return fmt.Sprintf("origin(%d)", uint8(o))
}

// ParseOrigin maps "computed", "self" or "target" to an Origin.
func ParseOrigin(s string) (Origin, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range originNames {
		if n == name {
			return Origin(i), nil
		}
	}
	return OriginComputed, fmt.Errorf("unknown input origin %q", s)
}

// Record is a named entry in the knowledge base. Computed records are
// produced by the input broker; the rest are properties stored on members.
type Record struct {
	Name     string `json:"name" yaml:"name"`
	Computed bool   `json:"computed,omitempty" yaml:"computed,omitempty"`
}

// KnowledgeBase is the ordered set of records a project knows about.
type KnowledgeBase struct {
	Records []*Record
}

// Add appends a record, or returns the existing one with the same name.
func (kb *KnowledgeBase) Add(name string, computed bool) *Record {
	if r := kb.Record(name); r != nil {
		return r
	}
	r := &Record{Name: name, Computed: computed}
	kb.Records = append(kb.Records, r)
	return r
}

// Record looks up a record by name.
func (kb *KnowledgeBase) Record(name string) *Record {
	for _, r := range kb.Records {
		if r.Name == name {
			return r
		}
	}
	return nil
}

// InputParameter declares one normalization parameter of an axis and the
// range an author may choose its value from.
type InputParameter struct {
	Name string  `json:"name" yaml:"name"`
	Min  float64 `json:"min" yaml:"min"`
	Max  float64 `json:"max" yaml:"max"`
}

// InputAxis describes where a consideration's raw input comes from and which
// normalization parameters it takes.
type InputAxis struct {
	Name       string
	Origin     Origin
	Record     *Record
	Parameters []*InputParameter

	changed Notifier
}

// NewInputAxis creates an axis with no parameters.
func NewInputAxis(name string, origin Origin, rec *Record) *InputAxis {
	return &InputAxis{Name: name, Origin: origin, Record: rec}
}

func (a *InputAxis) String() string {
	return a.Name
}

// Rename changes the axis name and notifies dependents.
func (a *InputAxis) Rename(name string) {
	a.Name = name
	a.changed.Notify()
}

// SetParameters replaces the parameter list and notifies dependents, which
// rebuild their parameter values.
func (a *InputAxis) SetParameters(params ...*InputParameter) {
	a.Parameters = params
	a.changed.Notify()
}

// SetSource changes where the axis reads from and notifies dependents.
func (a *InputAxis) SetSource(origin Origin, rec *Record) {
	a.Origin = origin
	a.Record = rec
	a.changed.Notify()
}

// OnChange subscribes to structural changes of the axis.
func (a *InputAxis) OnChange(fn func()) (cancel func()) {
	return a.changed.Subscribe(fn)
}

// RecordName returns the bound record name, or "" when unbound.
func (a *InputAxis) RecordName() string {
	if a.Record == nil {
		return ""
	}
	return a.Record.Name
}
