package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestSink_NextReturnsNewerFrames(t *testing.T) {
	sink := NewSink()

	sink.Write([]byte("a"), 1)

	data, seq, err := sink.Next(context.Background(), 0)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if seq != 1 || string(data) != "a" {
		t.Errorf("got seq %d data %q", seq, data)
	}

	// same sequence again must block until a newer frame arrives
	go func() {
		time.Sleep(10 * time.Millisecond)
		sink.Write([]byte("b"), 2)
	}()

	data, seq, err = sink.Next(context.Background(), seq)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if seq != 2 || string(data) != "b" {
		t.Errorf("got seq %d data %q", seq, data)
	}
}

func TestSink_OrderIsStrictlyIncreasing(t *testing.T) {
	sink := NewSink()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()

		var last uint64
		for {
			_, seq, err := sink.Next(context.Background(), last)
			if err != nil {
				return
			}
			if seq <= last {
				t.Errorf("sequence went backwards: %d after %d", seq, last)
				return
			}
			last = seq
		}
	}()

	for i := uint64(1); i <= 100; i++ {
		sink.Write([]byte{byte(i)}, i)
	}
	sink.Close()
	wg.Wait()
}

func TestSink_IgnoresStaleWrites(t *testing.T) {
	sink := NewSink()

	sink.Write([]byte("new"), 5)
	sink.Write([]byte("stale"), 3)

	data, seq := sink.Latest()
	if seq != 5 || string(data) != "new" {
		t.Errorf("stale write should be ignored, got seq %d data %q", seq, data)
	}
}

func TestSink_CloseWakesReaders(t *testing.T) {
	sink := NewSink()

	done := make(chan error, 1)
	go func() {
		_, _, err := sink.Next(context.Background(), 0)
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	sink.Close()

	select {
	case err := <-done:
		if !errors.Is(err, ErrSinkClosed) {
			t.Errorf("got %v want ErrSinkClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("reader was not woken by Close")
	}

	// close again must not panic
	sink.Close()
}

func TestSink_NextHonorsContext(t *testing.T) {
	sink := NewSink()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, _, err := sink.Next(ctx, 0); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("got %v want context.DeadlineExceeded", err)
	}
}
