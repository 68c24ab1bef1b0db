package engine

import (
	"encoding/hex"
	"strconv"
	"strings"

	"golang.org/x/crypto/sha3"
)

// canonicalTickString flattens the hashed fields into the replay fingerprint
// preimage. Field order and formatting are part of the wire contract; any
// change breaks replay verification for every stored match.
func (e *Engine) canonicalTickString() string {
	var b strings.Builder
	b.Grow(128)
	b.WriteString(strconv.FormatUint(e.tick, 10))
	b.WriteByte(',')
	b.WriteString(strconv.Itoa(e.round))
	b.WriteByte(',')
	b.WriteString(strconv.FormatUint(e.score, 10))
	b.WriteByte(',')
	b.WriteString(strconv.Itoa(e.lives))
	b.WriteByte(',')
	b.WriteString(strconv.Itoa(e.pac.x))
	b.WriteByte(',')
	b.WriteString(strconv.Itoa(e.pac.y))
	b.WriteByte(',')
	b.WriteString(e.pac.dir.String())
	b.WriteByte(',')
	if e.powerActive {
		b.WriteByte('1')
	} else {
		b.WriteByte('0')
	}
	b.WriteByte(',')
	b.WriteString(strconv.Itoa(e.powerTicks))
	for i := range e.ghosts {
		g := &e.ghosts[i]
		b.WriteByte(',')
		b.WriteString(strconv.Itoa(g.x))
		b.WriteByte(',')
		b.WriteString(strconv.Itoa(g.y))
		b.WriteByte(',')
		b.WriteString(g.mode.String())
	}
	return b.String()
}

// Keccak256 hashes bytes with the legacy Keccak padding used by the ledger.
func Keccak256(data []byte) [32]byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	var out [32]byte
	h.Sum(out[:0])
	return out
}

func (e *Engine) recomputeHash() {
	e.hash = Keccak256([]byte(e.canonicalTickString()))
}

// CanonicalLine rebuilds the fingerprint preimage from a snapshot, for
// replay logs and external verification. It must produce exactly the bytes
// the engine hashed for that tick.
func CanonicalLine(s Snapshot) string {
	var b strings.Builder
	b.Grow(128)
	b.WriteString(strconv.FormatUint(s.Tick, 10))
	b.WriteByte(',')
	b.WriteString(strconv.Itoa(s.Round))
	b.WriteByte(',')
	b.WriteString(strconv.FormatUint(s.Score, 10))
	b.WriteByte(',')
	b.WriteString(strconv.Itoa(s.Lives))
	b.WriteByte(',')
	b.WriteString(strconv.Itoa(s.Pacman.X))
	b.WriteByte(',')
	b.WriteString(strconv.Itoa(s.Pacman.Y))
	b.WriteByte(',')
	b.WriteString(s.Pacman.Direction.String())
	b.WriteByte(',')
	if s.PowerActive {
		b.WriteByte('1')
	} else {
		b.WriteByte('0')
	}
	b.WriteByte(',')
	b.WriteString(strconv.Itoa(s.PowerTimeRemaining))
	for i := range s.Ghosts {
		g := &s.Ghosts[i]
		b.WriteByte(',')
		b.WriteString(strconv.Itoa(g.X))
		b.WriteByte(',')
		b.WriteString(strconv.Itoa(g.Y))
		b.WriteByte(',')
		b.WriteString(g.Mode.String())
	}
	return b.String()
}

// HashHex renders a fingerprint the way it travels in events and replays.
func HashHex(h [32]byte) string {
	return "0x" + hex.EncodeToString(h[:])
}
