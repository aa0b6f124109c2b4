package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/Mokona5901/ChatApp/internal/model"
	"github.com/Mokona5901/ChatApp/internal/repository"
)

// memStore is an in-memory MessageStore double with the same ordering
// semantics as the Postgres repository: pages are read newest-first then
// reversed to chronological order.
type memStore struct {
	mu         sync.Mutex
	nextID     int64
	msgs       []model.Message
	failInsert bool
}

func newMemStore() *memStore {
	return &memStore{nextID: 1}
}

func (s *memStore) Insert(_ context.Context, msg *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failInsert {
		return errors.New("store unavailable")
	}
	msg.ID = s.nextID
	s.nextID++
	msg.Timestamp = time.Now()
	s.msgs = append(s.msgs, *msg)
	return nil
}

func (s *memStore) Page(_ context.Context, channel string, skip, limit int) ([]model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var newest []model.Message
	for i := len(s.msgs) - 1; i >= 0; i-- {
		if s.msgs[i].Channel == channel {
			newest = append(newest, s.msgs[i])
		}
	}
	if skip >= len(newest) {
		return nil, nil
	}
	newest = newest[skip:]
	if len(newest) > limit {
		newest = newest[:limit]
	}
	sort.Slice(newest, func(i, j int) bool { return newest[i].ID < newest[j].ID })
	return newest, nil
}

func (s *memStore) GetByID(_ context.Context, id int64) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.msgs {
		if m.ID == id {
			cp := m
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *memStore) UpdateText(_ context.Context, id int64, newText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.msgs {
		if s.msgs[i].ID == id {
			s.msgs[i].Message = newText
			return nil
		}
	}
	return repository.ErrNotFound
}

func (s *memStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.msgs {
		if s.msgs[i].ID == id {
			s.msgs = append(s.msgs[:i], s.msgs[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.msgs)
}
