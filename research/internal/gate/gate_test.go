package gate

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestGate_CeilingHolds(t *testing.T) {
	// WHAT: With MaxInFlight=2, no more than 2 callers hold the gate at once.
	// WHY: This is the mechanism keeping the process under provider rate limits.
	g := New(Config{MaxInFlight: 2})

	var current, peak atomic.Int64
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := g.Acquire(context.Background()); err != nil {
				t.Error(err)
				return
			}
			defer g.Release()
			n := current.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			current.Add(-1)
		}()
	}
	wg.Wait()

	if p := peak.Load(); p > 2 {
		t.Fatalf("observed %d concurrent holders, ceiling is 2", p)
	}
	if g.InFlight() != 0 {
		t.Fatalf("InFlight = %d after all releases", g.InFlight())
	}
}

func TestGate_AcquireHonorsContext(t *testing.T) {
	g := New(Config{MaxInFlight: 1})
	if err := g.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer g.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := g.Acquire(ctx); err == nil {
		t.Fatal("Acquire should fail once ctx expires while waiting")
	}
}

func TestGate_PacingSpacesStarts(t *testing.T) {
	g := New(Config{MaxInFlight: 2, MinInterval: 20 * time.Millisecond})

	start := time.Now()
	for range 3 {
		if err := g.Acquire(context.Background()); err != nil {
			t.Fatal(err)
		}
		g.Release()
	}
	// First start is free; the next two wait a refill each.
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Fatalf("3 paced starts took %v, want >= 40ms spacing in total", elapsed)
	}
}

func TestGate_PenalizeDelaysNextStart(t *testing.T) {
	g := New(Config{MaxInFlight: 1, MinInterval: 20 * time.Millisecond})

	if err := g.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}
	g.Release()
	g.Penalize()

	start := time.Now()
	if err := g.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}
	g.Release()
	if elapsed := time.Since(start); elapsed < 25*time.Millisecond {
		t.Fatalf("start after Penalize took %v, want at least two refills", elapsed)
	}
}

func TestGate_PenalizeWithoutPacingIsNoop(t *testing.T) {
	g := New(Config{MaxInFlight: 1})
	g.Penalize() // must not panic or block anything
	if err := g.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}
	g.Release()
}
