package dispatch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunBoundsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	items := make([]int, 12)
	for i := range items {
		items[i] = i
	}

	outcomes, cancelled := Run(context.Background(), 3, items, func(ctx context.Context, n int) (int, error) {
		cur := inFlight.Add(1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return n * n, nil
	})

	if cancelled {
		t.Fatal("batch was not cancelled")
	}
	if peak.Load() > 3 {
		t.Fatalf("peak concurrency %d exceeds 3", peak.Load())
	}
	for i, o := range outcomes {
		if o.Index != i || o.Value != i*i || o.Skipped || o.Err != nil {
			t.Fatalf("outcome %d = %+v", i, o)
		}
	}
}

func TestRunItemErrorsDoNotCancel(t *testing.T) {
	boom := errors.New("boom")
	outcomes, cancelled := Run(context.Background(), 2, []int{1, 2, 3}, func(ctx context.Context, n int) (int, error) {
		if n == 2 {
			return 0, boom
		}
		return n, nil
	})
	if cancelled {
		t.Fatal("item errors must not cancel the batch")
	}
	if !errors.Is(outcomes[1].Err, boom) || outcomes[0].Value != 1 || outcomes[2].Value != 3 {
		t.Fatalf("unexpected outcomes %+v", outcomes)
	}
}

func TestRunKeepsCompletedOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	items := []int{0, 1, 2, 3, 4, 5, 6, 7}
	outcomes, cancelled := Run(ctx, 1, items, func(ctx context.Context, n int) (int, error) {
		if n == 2 {
			cancel()
			return 0, ctx.Err()
		}
		return n + 100, nil
	})

	if !cancelled {
		t.Fatal("expected cancelled batch")
	}
	if outcomes[0].Value != 100 || outcomes[1].Value != 101 {
		t.Fatalf("completed results lost: %+v", outcomes[:2])
	}
	for _, o := range outcomes[3:] {
		if !o.Skipped {
			t.Fatalf("item %d should not have started", o.Index)
		}
	}
}

func TestRunDefaultWorkers(t *testing.T) {
	outcomes, _ := Run(context.Background(), 0, []string{"a", "b"}, func(ctx context.Context, s string) (string, error) {
		return s + s, nil
	})
	if outcomes[0].Value != "aa" || outcomes[1].Value != "bb" {
		t.Fatalf("unexpected outcomes %+v", outcomes)
	}
}
