package service

import (
	"sync"
	"testing"
	"time"
)

func TestClock_Next(t *testing.T) {
	now := time.Unix(1000, 0)
	c := NewClock(0)
	c.now = func() time.Time { return now }

	if got := c.Next(); got != 1000 {
		t.Errorf("first = %d, want 1000", got)
	}
	if got := c.Next(); got != 1001 {
		t.Errorf("same second = %d, want 1001", got)
	}

	now = time.Unix(5000, 0)
	if got := c.Next(); got != 5000 {
		t.Errorf("after time moved on = %d, want 5000", got)
	}

	now = time.Unix(10, 0)
	if got := c.Next(); got != 5001 {
		t.Errorf("after clock went backwards = %d, want 5001", got)
	}
}

func TestClock_Seed(t *testing.T) {
	c := NewClock(2000)
	c.now = func() time.Time { return time.Unix(1500, 0) }

	if got := c.Next(); got != 2001 {
		t.Errorf("Next = %d, want 2001", got)
	}
}

func TestClock_NeverRepeats(t *testing.T) {
	c := NewClock(0)

	const workers, perWorker = 8, 50
	results := make(chan int64, workers*perWorker)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				results <- c.Next()
			}
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[int64]bool)
	for ts := range results {
		if seen[ts] {
			t.Fatalf("timestamp %d handed out twice", ts)
		}
		seen[ts] = true
	}
}
