package agents

import (
	"testing"

	"github.com/talgya/utility-sim/internal/utility"
	"github.com/talgya/utility-sim/internal/world"
)

var (
	_ utility.Member = (*Agent)(nil)
	_ utility.Member = (*Location)(nil)
)

func TestMissingPropertyReadsZero(t *testing.T) {
	a := NewAgent("bob", world.Vec2{}, 0.1)
	if v := a.Property("hunger"); v != 0 {
		t.Fatalf("missing property = %v, want 0", v)
	}
	a.SetProperty("hunger", 0.7)
	if v := a.Property("hunger"); v != 0.7 {
		t.Fatalf("hunger = %v, want 0.7", v)
	}

	var loc Location
	loc.SetProperty("comfort", 2)
	if v := loc.Property("comfort"); v != 2 {
		t.Fatalf("comfort = %v, want 2", v)
	}
}

func TestSpawnerIsDeterministic(t *testing.T) {
	arch := Archetype{
		Name:   "villager",
		Radius: 0.1,
		Properties: map[string]PropertyRange{
			"hunger":  {Min: 0, Max: 1},
			"courage": {Min: 2, Max: 3},
		},
	}
	a := NewSpawner(7).Spawn(arch, 5, world.Vec2{X: 1, Y: 1}, 2)
	b := NewSpawner(7).Spawn(arch, 5, world.Vec2{X: 1, Y: 1}, 2)
	for i := range a {
		if a[i].Name() != b[i].Name() || a[i].Pos != b[i].Pos {
			t.Fatalf("spawn %d differs: %s@%v vs %s@%v", i, a[i].Name(), a[i].Pos, b[i].Name(), b[i].Pos)
		}
		for _, n := range []string{"hunger", "courage"} {
			if a[i].Property(n) != b[i].Property(n) {
				t.Fatalf("spawn %d property %s differs", i, n)
			}
		}
		if d := world.Distance(world.Vec2{X: 1, Y: 1}, a[i].Pos); d > 2 {
			t.Fatalf("spawn %d outside spread: %v", i, d)
		}
		if c := a[i].Property("courage"); c < 2 || c > 3 {
			t.Fatalf("courage %v outside range", c)
		}
	}
	if a[0].Name() != "villager-1" || a[4].Name() != "villager-5" {
		t.Fatalf("unexpected names %s, %s", a[0].Name(), a[4].Name())
	}
}
