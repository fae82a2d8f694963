package crawler

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLayerBarrier(t *testing.T) {
	t.Parallel()

	t.Run("controller hold keeps the layer open", func(t *testing.T) {
		t.Parallel()

		var b layerBarrier
		b.begin()
		b.register()
		b.arrive() // worker finishes before the controller lets go

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		if err := b.awaitAdvance(ctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("layer drained while the controller still held it: %v", err)
		}

		b.arrive()
		if err := b.awaitAdvance(context.Background()); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("waits for work registered by other work", func(t *testing.T) {
		t.Parallel()

		var b layerBarrier
		b.begin()
		b.register()
		b.arrive() // controller hold

		go func() {
			b.register() // download hands off to extraction
			b.arrive()   // download done
			time.Sleep(10 * time.Millisecond)
			b.arrive() // extraction done
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := b.awaitAdvance(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if b.outstanding() != 0 {
			t.Errorf("outstanding = %d", b.outstanding())
		}
	})

	t.Run("generations restart the count", func(t *testing.T) {
		t.Parallel()

		var b layerBarrier
		if gen := b.begin(); gen != 1 {
			t.Errorf("first generation = %d", gen)
		}
		b.arrive()
		if gen := b.begin(); gen != 2 {
			t.Errorf("second generation = %d", gen)
		}
		if b.outstanding() != 1 {
			t.Errorf("outstanding = %d, expected the controller hold", b.outstanding())
		}
	})

	t.Run("cancellation unblocks the wait", func(t *testing.T) {
		t.Parallel()

		var b layerBarrier
		b.begin()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := b.awaitAdvance(ctx); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}
