package maze

import (
	"errors"
	"sync"
	"testing"

	"github.com/tmdry4530/Phantom-Arena-sub000/internal/arenaerr"
)

func TestCacheSharesBoards(t *testing.T) {
	c := NewCache()
	a, err := c.Get(VariantRandom, 9)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	b, err := c.Get(VariantRandom, 9)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if a != b {
		t.Fatal("same key returned distinct boards")
	}

	other, err := c.Get(VariantRandom, 10)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if other == a {
		t.Fatal("distinct seeds returned the same board")
	}
	classic, err := c.Get(VariantClassic, 9)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if classic == a {
		t.Fatal("distinct variants returned the same board")
	}
}

func TestCacheUnknownVariant(t *testing.T) {
	c := NewCache()
	if _, err := c.Get(Variant("bogus"), 1); !errors.Is(err, arenaerr.ErrInvalidArgument) {
		t.Fatalf("err = %v, want invalid_argument", err)
	}
}

func TestCacheConcurrentGet(t *testing.T) {
	c := NewCache()
	const n = 16
	boards := make([]*Maze, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m, err := c.Get(VariantRandom, 123)
			if err != nil {
				t.Errorf("Get: %v", err)
				return
			}
			boards[i] = m
		}(i)
	}
	wg.Wait()
	for i := 1; i < n; i++ {
		if boards[i] != boards[0] {
			t.Fatal("concurrent gets returned distinct boards")
		}
	}
}
