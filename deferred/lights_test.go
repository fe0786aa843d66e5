package deferred

import (
	"encoding/binary"
	"testing"
)

func checkLights(t *testing.T, lights []Light, count int) {
	t.Helper()
	if len(lights) != count {
		t.Fatalf("Generate(%d): got %d lights", count, len(lights))
	}
	for i, l := range lights {
		for _, p := range l.Position {
			if p < -10 || p >= 10 {
				t.Fatalf("Generate(%d): light %d position %v out of [-10, 10)", count, i, l.Position)
			}
		}
		if l.Size < 0.1 || l.Size >= 0.3 {
			t.Fatalf("Generate(%d): light %d size %v out of [0.1, 0.3)", count, i, l.Size)
		}
		for _, c := range l.Color {
			if c < 0 || c >= 1 {
				t.Fatalf("Generate(%d): light %d color %v out of [0, 1)", count, i, l.Color)
			}
		}
	}
}

func TestGenerate(t *testing.T) {
	g := NewLightGenerator(0)
	for _, n := range []int{MinLights, 101, 1000, DefaultLights, MaxLights} {
		checkLights(t, g.Generate(n), n)
	}
}

func TestGenerateRepeated(t *testing.T) {
	g := NewLightGenerator(42)
	first := g.Generate(MinLights)
	second := g.Generate(MinLights)
	checkLights(t, first, MinLights)
	checkLights(t, second, MinLights)
	if first[0] == second[0] {
		t.Fatal("Generate: the random stream restarted")
	}
}

func TestGenerateSeed(t *testing.T) {
	a := NewLightGenerator(7).Generate(200)
	b := NewLightGenerator(7).Generate(200)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("Generate: light %d differs for the same seed: %v != %v", i, a[i], b[i])
		}
	}
}

func TestClampLightCount(t *testing.T) {
	cases := []struct{ in, want int }{
		{-1, MinLights},
		{0, MinLights},
		{99, MinLights},
		{100, 100},
		{12345, 12345},
		{50000, 50000},
		{50001, MaxLights},
	}
	for _, c := range cases {
		if got := ClampLightCount(c.in); got != c.want {
			t.Fatalf("ClampLightCount(%d): got %d, want %d", c.in, got, c.want)
		}
	}
}

func TestLightSize(t *testing.T) {
	if n := binary.Size(Light{}); n != LightSize {
		t.Fatalf("binary.Size(Light{}): got %d, want %d", n, LightSize)
	}
}
