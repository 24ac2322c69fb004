package agents

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/talgya/utility-sim/internal/utility"
	"github.com/talgya/utility-sim/internal/world"
)

// PropertyRange is the uniform range a spawned property is drawn from.
type PropertyRange struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Archetype is a template for spawning many similar agents.
type Archetype struct {
	Name       string
	Radius     float64
	Behaviors  []*utility.Behavior
	Properties map[string]PropertyRange
}

// Spawner creates agents from archetypes. It is deterministic for a seed.
type Spawner struct {
	rng    *rand.Rand
	counts map[string]int
}

// NewSpawner creates a spawner with the given seed.
func NewSpawner(seed int64) *Spawner {
	return &Spawner{
		rng:    rand.New(rand.NewSource(seed + 300)),
		counts: make(map[string]int),
	}
}

// Spawn creates count agents of arch scattered uniformly over a disc of
// radius spread around center. Agents share the archetype's behaviors.
func (s *Spawner) Spawn(arch Archetype, count int, center world.Vec2, spread float64) []*Agent {
	out := make([]*Agent, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, s.spawnOne(arch, center, spread))
	}
	return out
}

func (s *Spawner) spawnOne(arch Archetype, center world.Vec2, spread float64) *Agent {
	s.counts[arch.Name]++
	name := fmt.Sprintf("%s-%d", arch.Name, s.counts[arch.Name])

	// sqrt keeps the density uniform over the disc.
	r := spread * math.Sqrt(s.rng.Float64())
	theta := s.rng.Float64() * 2 * math.Pi
	pos := center.Add(world.Vec2{X: r * math.Cos(theta), Y: r * math.Sin(theta)})

	a := NewAgent(name, pos, arch.Radius)
	a.Behaviors = arch.Behaviors

	// Sorted names keep draws reproducible across map iteration orders.
	names := make([]string, 0, len(arch.Properties))
	for n := range arch.Properties {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		rng := arch.Properties[n]
		a.SetProperty(n, rng.Min+s.rng.Float64()*(rng.Max-rng.Min))
	}
	return a
}
