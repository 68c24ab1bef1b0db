package maze

import "testing"

func TestGenerateDeterminism(t *testing.T) {
	for _, seed := range []int64{0, 1, 42, 12345, -7} {
		a := mustBuild(t, VariantRandom, seed)
		b := mustBuild(t, VariantRandom, seed)
		for y := 0; y < Height; y++ {
			for x := 0; x < Width; x++ {
				if a.Cell(x, y) != b.Cell(x, y) {
					t.Fatalf("seed %d: boards diverge at (%d,%d)", seed, x, y)
				}
			}
		}
		if a.RemainingPellets() != b.RemainingPellets() {
			t.Fatalf("seed %d: pellet counts diverge", seed)
		}
	}
}

func TestGenerateSeedsDiffer(t *testing.T) {
	a := mustBuild(t, VariantRandom, 1)
	b := mustBuild(t, VariantRandom, 2)
	for y := 0; y < Height; y++ {
		for x := 0; x < Width; x++ {
			if a.Cell(x, y) != b.Cell(x, y) {
				return
			}
		}
	}
	t.Fatal("seeds 1 and 2 produced identical boards")
}

func TestGenerateInvariants(t *testing.T) {
	for _, seed := range []int64{0, 3, 77, 4096, -1} {
		m := mustBuild(t, VariantRandom, seed)

		if got := len(m.PowerPellets()); got != 4 {
			t.Fatalf("seed %d: %d power pellets, want 4", seed, got)
		}
		sp := m.SpawnForPacman()
		if m.IsWall(sp.X, sp.Y) || m.HasPellet(sp.X, sp.Y) {
			t.Fatalf("seed %d: spawn tile must be open and empty", seed)
		}
		for _, g := range m.SpawnsForGhosts() {
			if !m.IsGhostHouse(g.X, g.Y) {
				t.Fatalf("seed %d: ghost spawn (%d,%d) not in house", seed, g.X, g.Y)
			}
		}
		for x := HouseMinX; x <= HouseMaxX; x++ {
			if m.IsWall(x, houseExitRow) {
				t.Fatalf("seed %d: exit corridor blocked at (%d,%d)", seed, x, houseExitRow)
			}
		}
		if m.IsWall(0, TunnelRow) || m.IsWall(Width-1, TunnelRow) {
			t.Fatalf("seed %d: tunnel ends blocked", seed)
		}

		seen := reachable(t, m)
		for y := 0; y < Height; y++ {
			for x := 0; x < Width; x++ {
				c := m.Cell(x, y)
				if c == CellWall || c == CellHouse {
					continue
				}
				if !seen[y][x] {
					t.Fatalf("seed %d: walkable cell (%d,%d) unreachable", seed, x, y)
				}
			}
		}
	}
}
