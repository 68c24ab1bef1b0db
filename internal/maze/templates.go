package maze

// Fixed board templates, 28 columns by 31 rows. Legend: '#' wall, '.' pellet,
// 'o' power pellet, ' ' open floor. Ghost-house and tunnel classification is
// geometric (see maze.go), so templates only describe walls and pellets.
//
// All four variants share the center band (rows 9-19): the ghost house with
// its door at (13,12)-(14,12), the exit corridor on row 11 and the wrap
// tunnel on row 14. The engine depends on that geometry being identical
// across variants.

var classicRows = []string{
	"############################",
	"#............##............#",
	"#.####.#####.##.#####.####.#",
	"#o####.#####.##.#####.####o#",
	"#.####.#####.##.#####.####.#",
	"#..........................#",
	"#.####.##.########.##.####.#",
	"#.####.##.########.##.####.#",
	"#......##....##....##......#",
	"######.##### ## #####.######",
	"######.##### ## #####.######",
	"######.##          ##.######",
	"######.## ###  ### ##.######",
	"######.## #      # ##.######",
	"      .   #      #   .      ",
	"######.## #      # ##.######",
	"######.## ######## ##.######",
	"######.##          ##.######",
	"######.## ######## ##.######",
	"######.## ######## ##.######",
	"#............##............#",
	"#.####.#####.##.#####.####.#",
	"#.####.#####.##.#####.####.#",
	"#o..##.......  .......##..o#",
	"###.##.##.########.##.##.###",
	"###.##.##.########.##.##.###",
	"#......##....##....##......#",
	"#.##########.##.##########.#",
	"#.##########.##.##########.#",
	"#..........................#",
	"############################",
}

var labyrinthRows = []string{
	"############################",
	"#............##............#",
	"#.##.#######.##.#######.##.#",
	"#o##.......#....#.......##o#",
	"#.##.##.##.######.##.##.##.#",
	"#....##.##........##.##....#",
	"###.#####.########.#####.###",
	"#...#####.##....##.#####...#",
	"#.#.......##.##.##.......#.#",
	"######.##### ## #####.######",
	"######.##### ## #####.######",
	"######.##          ##.######",
	"######.## ###  ### ##.######",
	"######.## #      # ##.######",
	"      .   #      #   .      ",
	"######.## #      # ##.######",
	"######.## ######## ##.######",
	"######.##          ##.######",
	"######.## ######## ##.######",
	"######.## ######## ##.######",
	"#......#.....##.....#......#",
	"#.####.##.########.##.####.#",
	"#......##....##....##......#",
	"#o..##.......  .......##..o#",
	"#.##.##.############.##.##.#",
	"#....##......##......##....#",
	"###.#######.####.#######.###",
	"#...##................##...#",
	"#.########.##..##.########.#",
	"#..........................#",
	"############################",
}

var speedwayRows = []string{
	"############################",
	"#o........................o#",
	"#.#####.#####..#####.#####.#",
	"#.#####.#####..#####.#####.#",
	"#..........................#",
	"#..........................#",
	"#.#####.#####..#####.#####.#",
	"#.#####.#####..#####.#####.#",
	"#..........................#",
	"######.##### ## #####.######",
	"######.##### ## #####.######",
	"######.##          ##.######",
	"######.## ###  ### ##.######",
	"######.## #      # ##.######",
	"      .   #      #   .      ",
	"######.## #      # ##.######",
	"######.## ######## ##.######",
	"######.##          ##.######",
	"######.## ######## ##.######",
	"######.## ######## ##.######",
	"#..........................#",
	"#.#####.#####..#####.#####.#",
	"#.#####.#####..#####.#####.#",
	"#o...........  ...........o#",
	"#.#####.#####..#####.#####.#",
	"#.#####.#####..#####.#####.#",
	"#..........................#",
	"#.#####.#####..#####.#####.#",
	"#.#####.#####..#####.#####.#",
	"#..........................#",
	"############################",
}

var fortressRows = []string{
	"############################",
	"#............##............#",
	"#.##########.##.##########.#",
	"#o.........#.##.#.........o#",
	"#.#.######.#.##.#.######.#.#",
	"#.#.######.#.##.#.######.#.#",
	"#.#........#.##.#........#.#",
	"#.##########.##.##########.#",
	"#..........................#",
	"######.##### ## #####.######",
	"######.##### ## #####.######",
	"######.##          ##.######",
	"######.## ###  ### ##.######",
	"######.## #      # ##.######",
	"      .   #      #   .      ",
	"######.## #      # ##.######",
	"######.## ######## ##.######",
	"######.##          ##.######",
	"######.## ######## ##.######",
	"######.## ######## ##.######",
	"#..........................#",
	"#.##########.##.##########.#",
	"#.#........#.##.#........#.#",
	"#o.........#.  .#.........o#",
	"#.#.######.#.##.#.######.#.#",
	"#.#.######.#.##.#.######.#.#",
	"#.#........#.##.#........#.#",
	"#.##########.##.##########.#",
	"#.##########.##.##########.#",
	"#..........................#",
	"############################",
}

var templates = map[Variant][]string{
	VariantClassic:   classicRows,
	VariantLabyrinth: labyrinthRows,
	VariantSpeedway:  speedwayRows,
	VariantFortress:  fortressRows,
}
