package router

import (
	"sync"
	"testing"
	"time"

	"github.com/rickgao/chat-pubsub/internal/action"
	"github.com/rickgao/chat-pubsub/internal/protocol"
)

func TestBuffer_FIFO(t *testing.T) {
	buf := NewBuffer[int](10)

	for i := 0; i < 5; i++ {
		if !buf.Send(i) {
			t.Fatalf("Send(%d) returned false", i)
		}
	}
	if buf.Len() != 5 {
		t.Errorf("Len() = %d, want 5", buf.Len())
	}

	for i := 0; i < 5; i++ {
		val, ok := buf.TryReceive()
		if !ok || val != i {
			t.Fatalf("TryReceive() = %d, %v; want %d, true", val, ok, i)
		}
	}

	if _, ok := buf.TryReceive(); ok {
		t.Error("TryReceive on empty buffer should return false")
	}
}

func TestBuffer_Growth(t *testing.T) {
	tests := []struct {
		name        string
		initial     int
		sends       int
		wantResizes int
	}{
		{"below threshold", 10, 5, 0},
		{"at 70 percent", 10, 7, 1},
		{"many doublings", 4, 100, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := NewBuffer[int](tt.initial)
			for i := 0; i < tt.sends; i++ {
				buf.Send(i)
			}

			stats := buf.Stats()
			if stats.ResizeCount != tt.wantResizes {
				t.Errorf("ResizeCount = %d, want %d", stats.ResizeCount, tt.wantResizes)
			}
			if stats.Count != tt.sends {
				t.Errorf("Count = %d, want %d", stats.Count, tt.sends)
			}

			for i := 0; i < tt.sends; i++ {
				if val, _ := buf.TryReceive(); val != i {
					t.Fatalf("item %d = %d after growth", i, val)
				}
			}
		})
	}
}

func TestBuffer_GrowthPreservesWrappedOrder(t *testing.T) {
	buf := NewBuffer[int](5)
	buf.Send(1)
	buf.Send(2)
	buf.Send(3)
	buf.TryReceive()
	buf.TryReceive()

	// The ring wraps, then grows.
	for i := 4; i <= 8; i++ {
		buf.Send(i)
	}

	got := buf.DrainTo(0)
	want := []int{3, 4, 5, 6, 7, 8}
	if len(got) != len(want) {
		t.Fatalf("DrainTo(0) = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestBuffer_DrainToLimit(t *testing.T) {
	buf := NewBuffer[int](10)
	for i := 0; i < 10; i++ {
		buf.Send(i)
	}

	if items := buf.DrainTo(4); len(items) != 4 || items[0] != 0 || items[3] != 3 {
		t.Errorf("DrainTo(4) = %v", items)
	}
	if buf.Len() != 6 {
		t.Errorf("Len() = %d, want 6", buf.Len())
	}
	if items := buf.DrainTo(0); len(items) != 6 {
		t.Errorf("DrainTo(0) returned %d items, want 6", len(items))
	}
	if items := buf.DrainTo(0); items != nil {
		t.Errorf("DrainTo on empty buffer = %v, want nil", items)
	}
}

func TestBuffer_ReceiveBlocksUntilSend(t *testing.T) {
	buf := NewBuffer[int](10)
	received := make(chan int, 1)

	go func() {
		if val, ok := buf.Receive(); ok {
			received <- val
		}
	}()

	time.Sleep(10 * time.Millisecond)
	buf.Send(42)

	select {
	case val := <-received:
		if val != 42 {
			t.Errorf("received %d, want 42", val)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for blocked receive")
	}
}

func TestBuffer_Close(t *testing.T) {
	buf := NewBuffer[int](10)
	buf.Send(1)
	buf.Close()

	if buf.Send(2) {
		t.Error("Send should return false after Close")
	}
	if val, ok := buf.Receive(); !ok || val != 1 {
		t.Errorf("Receive() = %d, %v; want queued item after Close", val, ok)
	}
	if _, ok := buf.Receive(); ok {
		t.Error("Receive should return false when closed and empty")
	}
}

func TestBuffer_CloseUnblocksReceive(t *testing.T) {
	buf := NewBuffer[int](10)
	done := make(chan bool, 1)

	go func() {
		_, ok := buf.Receive()
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	buf.Close()

	select {
	case ok := <-done:
		if ok {
			t.Error("Receive should return false when closed and empty")
		}
	case <-time.After(time.Second):
		t.Fatal("Close did not unblock Receive")
	}
}

func TestBuffer_Concurrent(t *testing.T) {
	buf := NewBuffer[int](8)
	const producers, perProducer = 4, 250

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				buf.Send(p*perProducer + i)
			}
		}(p)
	}

	seen := make(map[int]bool)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for len(seen) < producers*perProducer {
			val, ok := buf.Receive()
			if !ok {
				return
			}
			seen[val] = true
		}
	}()

	wg.Wait()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("received %d of %d items", len(seen), producers*perProducer)
	}

	stats := buf.Stats()
	if stats.TotalReceived != producers*perProducer || stats.TotalSent != producers*perProducer {
		t.Errorf("stats = %+v", stats)
	}
}

func TestNewBuffer_MinCapacity(t *testing.T) {
	for _, initial := range []int{0, -5} {
		if got := NewBuffer[int](initial).Cap(); got != 1 {
			t.Errorf("NewBuffer(%d).Cap() = %d, want 1", initial, got)
		}
	}
}

func TestBufferedSink(t *testing.T) {
	sink := NewBufferedSink(4)

	event := Event{
		Category: CategoryWhisper,
		Topic:    protocol.WhispersTopic("1"),
		Action:   action.WhisperAction{Body: "hi"},
	}
	sink.Handle(event)

	got, ok := sink.Buffer().TryReceive()
	if !ok {
		t.Fatal("expected queued event")
	}
	if got.Topic != event.Topic || got.Action.(action.WhisperAction).Body != "hi" {
		t.Errorf("got %+v", got)
	}

	sink.Close()
	sink.Handle(event)
	if sink.Buffer().Len() != 0 {
		t.Error("events after Close should be dropped")
	}
}
