package store

import (
	"errors"
	"sync"
)

var ErrNotFound = errors.New("key not found")

// CommandStore is the deliberately volatile half of the system: plain
// process memory, empty on every start, no persistence of any kind. It
// exists so that a restart visibly loses state that the request history
// can later be replayed to rebuild.
type CommandStore struct {
	mu    sync.RWMutex
	state map[string]string
	queue []string
}

func NewCommandStore() *CommandStore {
	return &CommandStore{
		state: make(map[string]string),
	}
}

func (s *CommandStore) Put(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state[key] = value
}

func (s *CommandStore) Get(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.state[key]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

func (s *CommandStore) Enqueue(cmd string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, cmd)
}

// Commands returns a copy of the queue in submission order.
func (s *CommandStore) Commands() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.queue))
	copy(out, s.queue)
	return out
}

func (s *CommandStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = nil
}
