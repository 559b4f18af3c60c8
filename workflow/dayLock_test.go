package workflow

import (
	"context"
	"sync"
	"testing"
	"time"
)

// DB-free: without redis the lock falls back to the in-process mutex map,
// which is what these tests exercise.

func TestAcquireDayLock_SerializesSameDay(t *testing.T) {
	ctx := context.Background()
	date := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

	var inside, maxInside, total int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := AcquireDayLock(ctx, date)
			if err != nil {
				t.Errorf("AcquireDayLock: %v", err)
				return
			}
			defer release()

			mu.Lock()
			inside++
			if inside > maxInside {
				maxInside = inside
			}
			mu.Unlock()

			mu.Lock()
			inside--
			total++
			mu.Unlock()
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Fatalf("expected exclusive critical section, saw %d concurrent holders", maxInside)
	}
	if total != 50 {
		t.Fatalf("expected all 50 holders to run, got %d", total)
	}
}

func TestAcquireDayLock_DifferentDaysIndependent(t *testing.T) {
	ctx := context.Background()
	first := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	second := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	releaseFirst, err := AcquireDayLock(ctx, first)
	if err != nil {
		t.Fatalf("AcquireDayLock: %v", err)
	}
	defer releaseFirst()

	done := make(chan struct{})
	go func() {
		releaseSecond, err := AcquireDayLock(ctx, second)
		if err != nil {
			t.Errorf("AcquireDayLock: %v", err)
			return
		}
		releaseSecond()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("holding one day's lock must not block another day")
	}
}

func TestAcquireDayLock_TimeComponentIgnored(t *testing.T) {
	ctx := context.Background()
	morning := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)
	evening := time.Date(2026, 3, 14, 22, 30, 0, 0, time.UTC)

	release, err := AcquireDayLock(ctx, morning)
	if err != nil {
		t.Fatalf("AcquireDayLock: %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		releaseEvening, err := AcquireDayLock(ctx, evening)
		if err != nil {
			t.Errorf("AcquireDayLock: %v", err)
			return
		}
		releaseEvening()
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("same calendar date must share one lock regardless of time of day")
	case <-time.After(200 * time.Millisecond):
	}

	release()
	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("lock not released to the same-date waiter")
	}
}
