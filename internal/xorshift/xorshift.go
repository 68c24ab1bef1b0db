// Package xorshift implements the xorshift128+ generator that drives every
// random decision in the simulation. Replays hash the resulting state stream,
// so the exact bit sequence is part of the wire contract and must never
// change.
package xorshift

// Source is a xorshift128+ generator. The zero value is not valid; use New.
type Source struct {
	s0, s1 uint64
}

// splitmix64 expands a single integer seed into generator state. Two
// consecutive outputs can never both be zero, which xorshift128+ requires.
func splitmix64(x *uint64) uint64 {
	*x += 0x9e3779b97f4a7c15
	z := *x
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// New returns a generator seeded from a single integer.
func New(seed int64) *Source {
	x := uint64(seed)
	s := &Source{}
	s.s0 = splitmix64(&x)
	s.s1 = splitmix64(&x)
	return s
}

// Uint64 returns the next value in the stream.
func (s *Source) Uint64() uint64 {
	x := s.s0
	y := s.s1
	s.s0 = y
	x ^= x << 23
	x ^= x >> 17
	x ^= y ^ (y >> 26)
	s.s1 = x
	return x + y
}

// Intn returns a value in [0, n). Panics if n <= 0.
func (s *Source) Intn(n int) int {
	if n <= 0 {
		panic("xorshift: Intn with non-positive n")
	}
	return int(s.Uint64() % uint64(n))
}

// Float64 returns a value in [0, 1) with 53 bits of precision.
func (s *Source) Float64() float64 {
	return float64(s.Uint64()>>11) / (1 << 53)
}
