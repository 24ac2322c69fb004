package project

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/talgya/utility-sim/internal/agents"
	"github.com/talgya/utility-sim/internal/curve"
	"github.com/talgya/utility-sim/internal/engine"
	"github.com/talgya/utility-sim/internal/entropy"
	"github.com/talgya/utility-sim/internal/utility"
	"github.com/talgya/utility-sim/internal/world"
)

// Options control how a project is turned into a scenario.
type Options struct {
	// Seed drives spawning and escape jitter. 0 spawns with seed 0 and draws
	// jitter from crypto/rand.
	Seed int64
}

// Build resolves every reference in f and returns a ready scenario.
func Build(f *File, opts Options) (*engine.Scenario, error) {
	b := &builder{
		file:           f,
		axes:           make(map[string]*utility.InputAxis),
		considerations: make(map[string]*utility.Consideration),
		behaviors:      make(map[string]*utility.Behavior),
		archetypes:     make(map[string]agents.Archetype),
		members:        make(map[string]bool),
	}

	var rng entropy.Source
	if opts.Seed != 0 {
		rng = entropy.NewSeeded(opts.Seed)
	}
	b.scenario = engine.NewScenario(f.Name, rng)
	b.scenario.Policy = f.Scoring.Policy()
	if f.Speed > 0 {
		b.scenario.Speed = f.Speed
	}

	steps := []func() error{
		b.knowledge,
		b.fields,
		b.inputs,
		b.buildConsiderations,
		b.buildBehaviors,
		b.buildArchetypes,
		func() error { return b.spawn(opts.Seed) },
		b.buildAgents,
		b.buildLocations,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, fmt.Errorf("project %q: %w", f.Name, err)
		}
	}

	slog.Info("project built",
		"name", f.Name,
		"agents", len(b.scenario.Agents),
		"locations", len(b.scenario.Locations),
		"behaviors", len(b.behaviors),
	)
	return b.scenario, nil
}

// Validate reports whether f builds.
func Validate(f *File) error {
	_, err := Build(f, Options{Seed: 1})
	return err
}

type builder struct {
	file     *File
	scenario *engine.Scenario

	kb             utility.KnowledgeBase
	axes           map[string]*utility.InputAxis
	considerations map[string]*utility.Consideration
	behaviors      map[string]*utility.Behavior
	archetypes     map[string]agents.Archetype
	members        map[string]bool
}

func (b *builder) knowledge() error {
	b.kb.Add(engine.ComputedDistance, true)
	for _, r := range b.file.Knowledge {
		if r.Name == "" {
			return errors.New("knowledge record with empty name")
		}
		if r.Name != engine.ComputedDistance && b.kb.Record(r.Name) != nil {
			return fmt.Errorf("knowledge record %q: %w", r.Name, ErrDuplicateName)
		}
		b.kb.Add(r.Name, r.Computed)
	}
	return nil
}

func (b *builder) fields() error {
	for _, fd := range b.file.Fields {
		if r := b.kb.Record(fd.Name); r != nil && !r.Computed {
			return fmt.Errorf("field %q shadows a property record", fd.Name)
		}
		b.kb.Add(fd.Name, true)

		cfg := world.DefaultFieldConfig()
		cfg.Seed = fd.Seed
		if fd.Frequency > 0 {
			cfg.Frequency = fd.Frequency
		}
		if fd.Octaves > 0 {
			cfg.Octaves = fd.Octaves
		}
		if fd.Persistence > 0 {
			cfg.Persistence = fd.Persistence
		}
		b.scenario.RegisterField(fd.Name, world.NewField(cfg))
	}
	return nil
}

func (b *builder) inputs() error {
	for _, in := range b.file.Inputs {
		if _, dup := b.axes[in.Name]; dup {
			return fmt.Errorf("input %q: %w", in.Name, ErrDuplicateName)
		}
		origin, err := utility.ParseOrigin(in.Origin)
		if err != nil {
			return fmt.Errorf("input %q: %w", in.Name, err)
		}

		var rec *utility.Record
		if in.Record != "" {
			rec = b.kb.Record(in.Record)
			if rec == nil {
				return fmt.Errorf("input %q: record %q: %w", in.Name, in.Record, ErrUnknownReference)
			}
		}
		switch {
		case origin == utility.OriginComputed && rec != nil && !rec.Computed:
			return fmt.Errorf("input %q: record %q is a property, not a computed value", in.Name, in.Record)
		case origin != utility.OriginComputed && rec == nil:
			return fmt.Errorf("input %q: origin %s needs a record", in.Name, origin)
		case origin != utility.OriginComputed && rec.Computed:
			return fmt.Errorf("input %q: record %q is computed, not a property", in.Name, in.Record)
		}

		axis := utility.NewInputAxis(in.Name, origin, rec)
		params := make([]*utility.InputParameter, len(in.Parameters))
		for i := range in.Parameters {
			p := in.Parameters[i]
			params[i] = &p
		}
		axis.SetParameters(params...)
		b.axes[in.Name] = axis
	}
	return nil
}

func (b *builder) buildConsiderations() error {
	for _, cd := range b.file.Considerations {
		if _, dup := b.considerations[cd.Name]; dup {
			return fmt.Errorf("consideration %q: %w", cd.Name, ErrDuplicateName)
		}
		axis, ok := b.axes[cd.Input]
		if !ok {
			return fmt.Errorf("consideration %q: input %q: %w", cd.Name, cd.Input, ErrUnknownReference)
		}

		c := utility.NewConsideration(cd.Name)
		if cd.Curve != nil {
			c.Curve = *cd.Curve
		} else {
			c.Curve = curve.Identity()
		}
		c.SetInput(axis)
		for i, v := range cd.Values {
			if err := c.SetParameterValue(i, v); err != nil {
				return err
			}
		}
		if err := c.Validate(); err != nil {
			return err
		}
		b.considerations[cd.Name] = c
	}
	return nil
}

func (b *builder) buildBehaviors() error {
	for _, bd := range b.file.Behaviors {
		if _, dup := b.behaviors[bd.Name]; dup {
			return fmt.Errorf("behavior %q: %w", bd.Name, ErrDuplicateName)
		}
		beh := utility.NewBehavior(bd.Name, bd.Action)
		beh.CanTargetSelf = bd.CanTargetSelf
		beh.CanTargetOthers = bd.CanTargetOthers
		beh.Payload = bd.Payload
		if bd.Weight != nil {
			beh.Weight = *bd.Weight
		}
		for _, name := range bd.Considerations {
			c, ok := b.considerations[name]
			if !ok {
				return fmt.Errorf("behavior %q: consideration %q: %w", bd.Name, name, ErrUnknownReference)
			}
			beh.Considerations = append(beh.Considerations, c)
		}
		b.behaviors[bd.Name] = beh
	}
	return nil
}

func (b *builder) behaviorList(owner string, names []string) ([]*utility.Behavior, error) {
	out := make([]*utility.Behavior, 0, len(names))
	for _, name := range names {
		beh, ok := b.behaviors[name]
		if !ok {
			return nil, fmt.Errorf("%s: behavior %q: %w", owner, name, ErrUnknownReference)
		}
		out = append(out, beh)
	}
	return out, nil
}

func (b *builder) buildArchetypes() error {
	for _, ad := range b.file.Archetypes {
		if _, dup := b.archetypes[ad.Name]; dup {
			return fmt.Errorf("archetype %q: %w", ad.Name, ErrDuplicateName)
		}
		behaviors, err := b.behaviorList("archetype "+ad.Name, ad.Behaviors)
		if err != nil {
			return err
		}
		b.archetypes[ad.Name] = agents.Archetype{
			Name:       ad.Name,
			Radius:     ad.Radius,
			Behaviors:  behaviors,
			Properties: ad.Properties,
		}
	}
	return nil
}

func (b *builder) spawn(seed int64) error {
	if len(b.file.Spawn) == 0 {
		return nil
	}
	spawner := agents.NewSpawner(seed)
	for _, sd := range b.file.Spawn {
		arch, ok := b.archetypes[sd.Archetype]
		if !ok {
			return fmt.Errorf("spawn: archetype %q: %w", sd.Archetype, ErrUnknownReference)
		}
		if sd.Count < 0 {
			return fmt.Errorf("spawn %q: negative count %d", sd.Archetype, sd.Count)
		}
		for _, a := range spawner.Spawn(arch, sd.Count, sd.Center, sd.Spread) {
			if err := b.claim(a.Name()); err != nil {
				return err
			}
			b.scenario.AddAgent(a)
		}
	}
	return nil
}

func (b *builder) buildAgents() error {
	for _, ad := range b.file.Agents {
		if err := b.claim(ad.Name); err != nil {
			return err
		}
		behaviors, err := b.behaviorList("agent "+ad.Name, ad.Behaviors)
		if err != nil {
			return err
		}
		a := agents.NewAgent(ad.Name, ad.Position, ad.Radius)
		a.Behaviors = behaviors
		for k, v := range ad.Properties {
			a.SetProperty(k, v)
		}
		b.scenario.AddAgent(a)
	}
	return nil
}

func (b *builder) buildLocations() error {
	for _, ld := range b.file.Locations {
		if err := b.claim(ld.Name); err != nil {
			return err
		}
		l := agents.NewLocation(ld.Name, ld.Position, ld.Radius)
		for k, v := range ld.Properties {
			l.SetProperty(k, v)
		}
		b.scenario.AddLocation(l)
	}
	return nil
}

// claim reserves a member name; agents and locations share one namespace.
func (b *builder) claim(name string) error {
	if name == "" {
		return errors.New("member with empty name")
	}
	if b.members[name] {
		return fmt.Errorf("member %q: %w", name, ErrDuplicateName)
	}
	b.members[name] = true
	return nil
}
