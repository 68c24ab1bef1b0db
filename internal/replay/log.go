// Package replay captures the canonical tick stream of a match, hashes it
// into the fingerprint the ledger records, and persists the compressed log
// so anyone can re-verify a result.
package replay

import (
	"bytes"

	"github.com/klauspost/compress/zstd"

	"github.com/tmdry4530/Phantom-Arena-sub000/internal/engine"
)

// Log accumulates the canonical line of every tick of one match, newline
// separated. The raw bytes are the hashing preimage; compression happens
// only at the storage boundary.
type Log struct {
	buf   bytes.Buffer
	ticks int
}

func NewLog() *Log { return &Log{} }

// Record appends the canonical line for one snapshot.
func (l *Log) Record(s engine.Snapshot) {
	l.buf.WriteString(engine.CanonicalLine(s))
	l.buf.WriteByte('\n')
	l.ticks++
}

// Ticks reports how many snapshots were recorded.
func (l *Log) Ticks() int { return l.ticks }

// Bytes returns the raw uncompressed log.
func (l *Log) Bytes() []byte { return l.buf.Bytes() }

// Hash fingerprints the whole run: keccak256 over the raw log bytes.
func (l *Log) Hash() [32]byte { return engine.Keccak256(l.buf.Bytes()) }

// HashHex is Hash rendered the way it travels in events and ledger records.
func (l *Log) HashHex() string { return engine.HashHex(l.Hash()) }

var (
	zstdEncoder, _ = zstd.NewWriter(nil)
	zstdDecoder, _ = zstd.NewReader(nil)
)

// Compress squeezes a raw log for storage. Tick lines are highly repetitive,
// so the ratio is large even at the default level.
func Compress(raw []byte) []byte {
	return zstdEncoder.EncodeAll(raw, make([]byte, 0, len(raw)/4))
}

// Decompress restores a stored blob to the raw log bytes.
func Decompress(blob []byte) ([]byte, error) {
	return zstdDecoder.DecodeAll(blob, nil)
}
