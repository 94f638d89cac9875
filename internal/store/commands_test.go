package store

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

func TestPutGetRoundtrip(t *testing.T) {
	s := NewCommandStore()
	s.Put("wifi_restart", "queued")

	value, err := s.Get("wifi_restart")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if value != "queued" {
		t.Fatalf("got %q, want %q", value, "queued")
	}
}

func TestGetAfterRestartReturnsNotFound(t *testing.T) {
	s := NewCommandStore()
	s.Put("wifi_restart", "queued")

	// a restart is just a fresh store
	s = NewCommandStore()

	_, err := s.Get("wifi_restart")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEnqueueKeepsSubmissionOrder(t *testing.T) {
	s := NewCommandStore()
	commands := []string{"restart wifi", "update firmware", "enable dhcp", "disable dhcp"}
	for _, cmd := range commands {
		s.Enqueue(cmd)
	}

	got := s.Commands()
	if len(got) != len(commands) {
		t.Fatalf("expected %d commands, got %d", len(commands), len(got))
	}
	for i, cmd := range commands {
		if got[i] != cmd {
			t.Fatalf("queue[%d] = %q, want %q", i, got[i], cmd)
		}
	}
}

func TestClearEmptiesQueue(t *testing.T) {
	s := NewCommandStore()
	s.Enqueue("test")
	s.Clear()

	if len(s.Commands()) != 0 {
		t.Fatal("expected empty queue after clear")
	}
}

func TestCommandsReturnsCopy(t *testing.T) {
	s := NewCommandStore()
	s.Enqueue("one")

	got := s.Commands()
	got[0] = "tampered"

	if s.Commands()[0] != "one" {
		t.Fatal("queue was mutated through a returned slice")
	}
}

func TestConcurrentAccess(t *testing.T) {
	s := NewCommandStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			s.Put(fmt.Sprintf("key-%d", i), "v")
		}(i)
		go func(i int) {
			defer wg.Done()
			s.Enqueue(fmt.Sprintf("cmd-%d", i))
		}(i)
	}
	wg.Wait()

	if len(s.Commands()) != 50 {
		t.Fatalf("expected 50 commands, got %d", len(s.Commands()))
	}
}
