package replay

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/tmdry4530/Phantom-Arena-sub000/internal/engine"
	"github.com/tmdry4530/Phantom-Arena-sub000/internal/maze"
)

func playLog(t *testing.T, seed int64, ticks int) *Log {
	t.Helper()
	e, err := engine.New(engine.Config{Variant: maze.VariantClassic, Seed: seed, Tier: 2}, nil)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	l := NewLog()
	dirs := [...]engine.Direction{engine.DirLeft, engine.DirUp, engine.DirNone, engine.DirDown}
	for i := 0; i < ticks; i++ {
		l.Record(e.Tick(dirs[i%len(dirs)]))
	}
	return l
}

func TestLogFingerprintIsStable(t *testing.T) {
	a := playLog(t, 7, 240)
	b := playLog(t, 7, 240)
	if a.HashHex() != b.HashHex() {
		t.Fatal("identical runs produced different fingerprints")
	}
	if a.Ticks() != 240 {
		t.Fatalf("ticks = %d, want 240", a.Ticks())
	}
	if lines := strings.Count(string(a.Bytes()), "\n"); lines != 240 {
		t.Fatalf("log has %d lines, want 240", lines)
	}

	c := playLog(t, 8, 240)
	if a.HashHex() == c.HashHex() {
		t.Fatal("different seeds produced the same fingerprint")
	}
}

func TestCompressRoundTrip(t *testing.T) {
	raw := playLog(t, 3, 600).Bytes()
	blob := Compress(raw)
	if len(blob) >= len(raw) {
		t.Fatalf("compression did not shrink the log: %d -> %d", len(raw), len(blob))
	}
	back, err := Decompress(blob)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if !bytes.Equal(back, raw) {
		t.Fatal("round trip corrupted the log")
	}
}

func TestMemStore(t *testing.T) {
	s := NewMemStore()
	blob := Compress(playLog(t, 5, 120).Bytes())

	uri, err := s.Put(context.Background(), blob)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !strings.HasPrefix(uri, "mem://replays/") {
		t.Fatalf("uri = %q", uri)
	}

	again, err := s.Put(context.Background(), blob)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if again != uri {
		t.Fatal("content-addressed store returned two URIs for one blob")
	}
	if s.Len() != 1 {
		t.Fatalf("Len = %d, want 1", s.Len())
	}

	got, ok := s.Get(uri)
	if !ok || !bytes.Equal(got, blob) {
		t.Fatal("stored blob not retrievable")
	}
}
