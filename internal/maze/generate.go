package maze

import (
	"github.com/tmdry4530/Phantom-Arena-sub000/internal/xorshift"
)

// generate builds the random variant. Every decision draws from one seeded
// xorshift128+ stream in a fixed iteration order, so a seed fully determines
// the board.
func generate(seed int64) *Maze {
	rng := xorshift.New(seed)

	var wall [Height][Width]bool
	for y := 0; y < Height; y++ {
		for x := 0; x < Width; x++ {
			wall[y][x] = true
		}
	}

	carveLeftHalf(&wall, rng)
	mirror(&wall)

	// Extra openings raise pellet density beyond what a perfect maze allows.
	for y := 1; y < Height-1; y++ {
		for x := 1; x < Width-1; x++ {
			if wall[y][x] && rng.Float64() < 0.35 {
				wall[y][x] = false
			}
		}
	}

	reserveFixedRegions(&wall)
	reconnect(&wall)

	m := &Maze{
		variant:     VariantRandom,
		seed:        seed,
		ghostSpawns: ghostSpawnPoints,
		pacSpawn:    Point{X: PacmanSpawnX, Y: PacmanSpawnY},
	}
	for y := 0; y < Height; y++ {
		for x := 0; x < Width; x++ {
			switch {
			case wall[y][x]:
				m.grid[y][x] = CellWall
			case inHouseRect(x, y):
				m.grid[y][x] = CellHouse
			case y == TunnelRow:
				m.grid[y][x] = CellTunnel
			default:
				m.grid[y][x] = CellOpen
			}
		}
	}

	placePowerPellets(m)
	fillPellets(m)
	return m
}

// carveLeftHalf runs a randomized backtracker over the odd-indexed cells of
// columns 1..13, producing a perfect maze on the left half.
func carveLeftHalf(wall *[Height][Width]bool, rng *xorshift.Source) {
	const halfMaxX = 13

	var visited [Height][Width]bool
	start := Point{X: 1, Y: 1}
	visited[start.Y][start.X] = true
	wall[start.Y][start.X] = false
	stack := []Point{start}

	steps := [4]Point{{X: 0, Y: -2}, {X: 0, Y: 2}, {X: -2, Y: 0}, {X: 2, Y: 0}}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		var cands []Point
		for _, d := range steps {
			nx, ny := cur.X+d.X, cur.Y+d.Y
			if nx < 1 || nx > halfMaxX || ny < 1 || ny > Height-2 {
				continue
			}
			if !visited[ny][nx] {
				cands = append(cands, Point{X: nx, Y: ny})
			}
		}
		if len(cands) == 0 {
			stack = stack[:len(stack)-1]
			continue
		}
		next := cands[rng.Intn(len(cands))]
		wall[(cur.Y+next.Y)/2][(cur.X+next.X)/2] = false
		wall[next.Y][next.X] = false
		visited[next.Y][next.X] = true
		stack = append(stack, next)
	}
}

func mirror(wall *[Height][Width]bool) {
	for y := 0; y < Height; y++ {
		for x := 0; x < Width/2; x++ {
			wall[y][Width-1-x] = wall[y][x]
		}
	}
}

// reserveFixedRegions stamps the geometry every board shares: the ghost
// house, its exit corridor, the wrap tunnel, the outer walls and the clear
// patch around the spawn.
func reserveFixedRegions(wall *[Height][Width]bool) {
	for y := HouseMinY; y <= HouseMaxY; y++ {
		for x := HouseMinX; x <= HouseMaxX; x++ {
			wall[y][x] = false
		}
	}
	for x := HouseMinX; x <= HouseMaxX; x++ {
		wall[houseExitRow][x] = false
	}
	for x := 0; x < Width; x++ {
		if x < HouseMinX || x > HouseMaxX {
			wall[TunnelRow][x] = false
		}
	}

	for x := 0; x < Width; x++ {
		wall[0][x] = true
		wall[Height-1][x] = true
	}
	for y := 0; y < Height; y++ {
		if y == TunnelRow {
			continue
		}
		wall[y][0] = true
		wall[y][Width-1] = true
	}

	for y := PacmanSpawnY - 1; y <= PacmanSpawnY+1; y++ {
		for x := PacmanSpawnX - 1; x <= PacmanSpawnX+1; x++ {
			wall[y][x] = false
		}
	}
}

// reconnect guarantees 4-connectivity of the open cells outside the house by
// knocking the shortest wall path from each stray component through to the
// component containing the spawn. House interior cells are walkable but not
// required to be reachable.
func reconnect(wall *[Height][Width]bool) {
	open := func(x, y int) bool {
		return !wall[y][x] && !inHouseRect(x, y)
	}

	var comp [Height][Width]int
	next := 0
	var order []Point
	for y := 0; y < Height; y++ {
		for x := 0; x < Width; x++ {
			if !open(x, y) || comp[y][x] != 0 {
				continue
			}
			next++
			order = append(order, Point{X: x, Y: y})
			queue := []Point{{X: x, Y: y}}
			comp[y][x] = next
			for len(queue) > 0 {
				c := queue[0]
				queue = queue[1:]
				for _, d := range [4]Point{{X: 0, Y: -1}, {X: 0, Y: 1}, {X: -1, Y: 0}, {X: 1, Y: 0}} {
					nx, ny := c.X+d.X, c.Y+d.Y
					if nx < 0 || nx >= Width || ny < 0 || ny >= Height {
						continue
					}
					if open(nx, ny) && comp[ny][nx] == 0 {
						comp[ny][nx] = next
						queue = append(queue, Point{X: nx, Y: ny})
					}
				}
			}
		}
	}
	if next <= 1 {
		return
	}

	main := comp[PacmanSpawnY][PacmanSpawnX]
	for id := 1; id <= next; id++ {
		if id == main {
			continue
		}
		seed := order[id-1]
		if comp[seed.Y][seed.X] != id {
			// Already merged by an earlier carve.
			continue
		}
		carveShortestPath(wall, &comp, seed, main, id)
	}
}

// carveShortestPath runs a 0-1 BFS from a stray component to the main one,
// where walkable cells cost 0 and wall cells cost 1, then opens the wall
// cells on the winning path.
func carveShortestPath(wall *[Height][Width]bool, comp *[Height][Width]int, from Point, main, id int) {
	type node struct{ x, y int }
	const unseen = -1

	var dist [Height][Width]int
	var prev [Height][Width]node
	for y := 0; y < Height; y++ {
		for x := 0; x < Width; x++ {
			dist[y][x] = unseen
		}
	}

	deque := make([]node, 0, Width*Height)
	dist[from.Y][from.X] = 0
	prev[from.Y][from.X] = node{x: -1, y: -1}
	deque = append(deque, node{x: from.X, y: from.Y})

	var goal node
	found := false
	for len(deque) > 0 && !found {
		c := deque[0]
		deque = deque[1:]
		for _, d := range [4]Point{{X: 0, Y: -1}, {X: 0, Y: 1}, {X: -1, Y: 0}, {X: 1, Y: 0}} {
			nx, ny := c.x+d.X, c.y+d.Y
			if nx < 1 || nx >= Width-1 || ny < 1 || ny >= Height-1 {
				continue
			}
			if inHouseRect(nx, ny) {
				continue
			}
			cost := 0
			if wall[ny][nx] {
				cost = 1
			}
			nd := dist[c.y][c.x] + cost
			if dist[ny][nx] != unseen && dist[ny][nx] <= nd {
				continue
			}
			dist[ny][nx] = nd
			prev[ny][nx] = c
			if cost == 0 {
				deque = append([]node{{x: nx, y: ny}}, deque...)
			} else {
				deque = append(deque, node{x: nx, y: ny})
			}
			if comp[ny][nx] == main {
				goal = node{x: nx, y: ny}
				found = true
				break
			}
		}
	}
	if !found {
		return
	}

	for c := goal; c.x != -1; c = prev[c.y][c.x] {
		if wall[c.y][c.x] {
			wall[c.y][c.x] = false
		}
		comp[c.y][c.x] = main
	}
	// Absorb the merged component so later passes skip it.
	for y := 0; y < Height; y++ {
		for x := 0; x < Width; x++ {
			if comp[y][x] == id {
				comp[y][x] = main
			}
		}
	}
}

// placePowerPellets drops one power pellet near each corner, on the nearest
// open cell within Manhattan radius 3. A corner with no open cell in range
// gets its anchor cell force-opened; generation never fails.
func placePowerPellets(m *Maze) {
	corners := [4]Point{
		{X: 1, Y: 1},
		{X: Width - 2, Y: 1},
		{X: 1, Y: Height - 2},
		{X: Width - 2, Y: Height - 2},
	}
	for _, c := range corners {
		p, ok := nearestOpen(m, c, 3)
		if !ok {
			m.grid[c.Y][c.X] = CellOpen
			p = c
		}
		m.grid[p.Y][p.X] = CellPower
		m.power = append(m.power, p)
	}
}

func nearestOpen(m *Maze, from Point, radius int) (Point, bool) {
	for r := 0; r <= radius; r++ {
		for dy := -r; dy <= r; dy++ {
			for dx := -r; dx <= r; dx++ {
				if abs(dx)+abs(dy) != r {
					continue
				}
				x, y := from.X+dx, from.Y+dy
				if x < 1 || x >= Width-1 || y < 1 || y >= Height-1 {
					continue
				}
				if m.grid[y][x] == CellOpen {
					return Point{X: x, Y: y}, true
				}
			}
		}
	}
	return Point{}, false
}

func fillPellets(m *Maze) {
	for y := 0; y < Height; y++ {
		for x := 0; x < Width; x++ {
			if m.grid[y][x] != CellOpen {
				continue
			}
			if x == PacmanSpawnX && y == PacmanSpawnY {
				continue
			}
			m.grid[y][x] = CellPellet
			m.pelletCount++
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
