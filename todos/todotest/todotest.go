// Package todotest provides an in memory todos.Accessor for tests of code built on the store.
package todotest

import (
	"context"
	"sync"

	"github.com/circleci/todo/todos"
)

// Store keeps todos in memory. Setting Err makes every call fail with it.
type Store struct {
	mu     sync.Mutex
	todos  []todos.Todo
	nextID int64
	inited int

	Err error
}

var _ todos.Accessor = (*Store)(nil)

func (s *Store) InitSchema(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.inited++
	return nil
}

// InitCalls reports how many times InitSchema succeeded.
func (s *Store) InitCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inited
}

func (s *Store) List(context.Context) ([]todos.Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	list := make([]todos.Todo, len(s.todos))
	copy(list, s.todos)
	return list, nil
}

func (s *Store) Create(_ context.Context, name string) (todos.Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return todos.Todo{}, s.Err
	}
	s.nextID++
	t := todos.Todo{ID: s.nextID, Name: name}
	s.todos = append(s.todos, t)
	return t, nil
}
