// Package project loads scenario definitions from YAML files and builds them
// into runnable scenarios.
//
// A project names every piece once and refers to it by name elsewhere:
// considerations name their input axis, behaviors name their considerations,
// agents and archetypes name their behaviors. Build resolves these references
// and rejects any it cannot find.
package project

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/talgya/utility-sim/internal/agents"
	"github.com/talgya/utility-sim/internal/curve"
	"github.com/talgya/utility-sim/internal/utility"
	"github.com/talgya/utility-sim/internal/world"
)

// ErrUnknownReference is returned when a project refers to a name it never
// defines.
var ErrUnknownReference = errors.New("unknown reference")

// ErrDuplicateName is returned when two entries of the same kind share a name.
var ErrDuplicateName = errors.New("duplicate name")

// File is the on-disk form of a project.
type File struct {
	Name           string             `yaml:"name"`
	Speed          float64            `yaml:"speed,omitempty"`
	Scoring        Scoring            `yaml:"scoring"`
	Knowledge      []utility.Record   `yaml:"knowledge,omitempty"`
	Fields         []FieldDef         `yaml:"fields,omitempty"`
	Inputs         []InputDef         `yaml:"inputs,omitempty"`
	Considerations []ConsiderationDef `yaml:"considerations,omitempty"`
	Behaviors      []BehaviorDef      `yaml:"behaviors,omitempty"`
	Archetypes     []ArchetypeDef     `yaml:"archetypes,omitempty"`
	Spawn          []SpawnDef         `yaml:"spawn,omitempty"`
	Agents         []AgentDef         `yaml:"agents,omitempty"`
	Locations      []LocationDef      `yaml:"locations,omitempty"`
}

// Scoring selects the combination policy.
type Scoring struct {
	// Compensation enables the makeup term for many considerations.
	// Nil means enabled.
	Compensation  *bool   `yaml:"compensation,omitempty"`
	MomentumBonus float64 `yaml:"momentum_bonus,omitempty"`
}

// FieldDef declares a noise field exposed as a computed input.
type FieldDef struct {
	Name        string  `yaml:"name"`
	Seed        int64   `yaml:"seed,omitempty"`
	Frequency   float64 `yaml:"frequency,omitempty"`
	Octaves     int     `yaml:"octaves,omitempty"`
	Persistence float64 `yaml:"persistence,omitempty"`
}

// InputDef declares an input axis.
type InputDef struct {
	Name       string                   `yaml:"name"`
	Origin     string                   `yaml:"origin"`
	Record     string                   `yaml:"record,omitempty"`
	Parameters []utility.InputParameter `yaml:"parameters,omitempty"`
}

// ConsiderationDef declares a consideration. Values override the seeded
// parameter values by position. A missing curve is the identity.
type ConsiderationDef struct {
	Name   string       `yaml:"name"`
	Input  string       `yaml:"input"`
	Curve  *curve.Curve `yaml:"curve,omitempty"`
	Values []float64    `yaml:"values,omitempty"`
}

// BehaviorDef declares a behavior. A missing weight means 1.
type BehaviorDef struct {
	Name            string             `yaml:"name"`
	Action          utility.ActionKind `yaml:"action"`
	CanTargetSelf   bool               `yaml:"can_target_self,omitempty"`
	CanTargetOthers bool               `yaml:"can_target_others,omitempty"`
	Payload         string             `yaml:"payload,omitempty"`
	Weight          *float64           `yaml:"weight,omitempty"`
	Considerations  []string           `yaml:"considerations,omitempty"`
}

// ArchetypeDef is a template for spawned agents.
type ArchetypeDef struct {
	Name       string                          `yaml:"name"`
	Radius     float64                         `yaml:"radius"`
	Behaviors  []string                        `yaml:"behaviors"`
	Properties map[string]agents.PropertyRange `yaml:"properties,omitempty"`
}

// SpawnDef scatters Count agents of an archetype around Center.
type SpawnDef struct {
	Archetype string     `yaml:"archetype"`
	Count     int        `yaml:"count"`
	Center    world.Vec2 `yaml:"center"`
	Spread    float64    `yaml:"spread"`
}

// AgentDef places one named agent.
type AgentDef struct {
	Name       string             `yaml:"name"`
	Position   world.Vec2         `yaml:"position"`
	Radius     float64            `yaml:"radius"`
	Behaviors  []string           `yaml:"behaviors"`
	Properties map[string]float64 `yaml:"properties,omitempty"`
}

// LocationDef places one named location.
type LocationDef struct {
	Name       string             `yaml:"name"`
	Position   world.Vec2         `yaml:"position"`
	Radius     float64            `yaml:"radius"`
	Properties map[string]float64 `yaml:"properties,omitempty"`
}

// Parse decodes a project. Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parsing project: %w", err)
	}
	return &f, nil
}

// Load reads and decodes a project file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading project: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Save writes the project as YAML.
func (f *File) Save(path string) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("encoding project: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing project: %w", err)
	}
	return nil
}

// Policy returns the scoring policy the project asks for.
func (s Scoring) Policy() utility.Policy {
	compensate := s.Compensation == nil || *s.Compensation
	return utility.NewPolicy(compensate, s.MomentumBonus)
}
