package relay

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"
)

func TestPipe_FIFO(t *testing.T) {
	p := newPipe(4)
	prod := &Producer{p: p}
	cons := &Consumer{p: p}

	ctx := context.Background()
	chunks := [][]byte{[]byte("aa"), []byte("bb"), []byte("cc")}

	for _, c := range chunks {
		if err := prod.Send(ctx, c); err != nil {
			t.Fatalf("Send failed: %v", err)
		}
	}

	for i, want := range chunks {
		got, err := cons.Recv(ctx)
		if err != nil {
			t.Fatalf("Recv %d failed: %v", i, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("Recv %d: got %q, want %q", i, got, want)
		}
	}
}

func TestPipe_Backpressure(t *testing.T) {
	p := newPipe(1)
	prod := &Producer{p: p}
	cons := &Consumer{p: p}

	ctx := context.Background()

	if err := prod.Send(ctx, []byte("first")); err != nil {
		t.Fatalf("First send should not block: %v", err)
	}

	// The buffer is full: a second send must block until the consumer
	// drains one chunk.
	blocked, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if err := prod.Send(blocked, []byte("second")); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected second send to block, got %v", err)
	}

	if _, err := cons.Recv(ctx); err != nil {
		t.Fatalf("Recv failed: %v", err)
	}

	if err := prod.Send(ctx, []byte("second")); err != nil {
		t.Fatalf("Send after drain failed: %v", err)
	}
}

func TestPipe_CloseUnblocksProducer(t *testing.T) {
	p := newPipe(1)
	prod := &Producer{p: p}

	ctx := context.Background()
	if err := prod.Send(ctx, []byte("fill")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- prod.Send(ctx, []byte("blocked"))
	}()

	time.Sleep(20 * time.Millisecond)
	prod.Close()

	select {
	case err := <-done:
		if !errors.Is(err, ErrClosed) {
			t.Errorf("Expected ErrClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Producer still blocked after close")
	}
}

func TestPipe_RecvDrainsAfterClose(t *testing.T) {
	p := newPipe(2)
	prod := &Producer{p: p}
	cons := &Consumer{p: p}

	ctx := context.Background()
	if err := prod.Send(ctx, []byte("buffered")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	prod.Close()

	got, err := cons.Recv(ctx)
	if err != nil {
		t.Fatalf("Expected buffered chunk after close, got error: %v", err)
	}
	if !bytes.Equal(got, []byte("buffered")) {
		t.Errorf("Got %q, want %q", got, "buffered")
	}

	if _, err := cons.Recv(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed after drain, got %v", err)
	}
}

func TestPipe_SendAfterCloseFails(t *testing.T) {
	p := newPipe(4)
	prod := &Producer{p: p}

	prod.Close()

	if !prod.IsClosed() {
		t.Error("Expected IsClosed after close")
	}
	if err := prod.Send(context.Background(), []byte("late")); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
}

func TestPipe_CloneSharesPipe(t *testing.T) {
	p := newPipe(2)
	prod := &Producer{p: p}
	clone := prod.Clone()

	if err := clone.Send(context.Background(), []byte("x")); err != nil {
		t.Fatalf("Clone send failed: %v", err)
	}
	if !prod.Used() {
		t.Error("Expected Used true after clone sent")
	}

	prod.Close()
	if !clone.IsClosed() {
		t.Error("Expected clone to observe close")
	}
}

func TestConsumer_CloseAbortsProducer(t *testing.T) {
	p := newPipe(1)
	prod := &Producer{p: p}
	cons := &Consumer{p: p}

	cons.Close()

	if err := prod.Send(context.Background(), []byte("x")); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed after consumer close, got %v", err)
	}
}
