package memory

import (
	"context"
	"sync"

	"simplepos/internal/domain"
	"simplepos/internal/store"
)

type Store struct {
	mu          sync.RWMutex
	submissions []domain.FormSubmission
	byID        map[string]int
}

func New() *Store {
	return &Store{byID: map[string]int{}}
}

func (s *Store) SaveSubmission(_ context.Context, submission domain.FormSubmission) (*domain.FormSubmission, error) {
	if err := store.Validate(submission); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[submission.ID]; exists {
		return nil, store.ErrInvalidSubmission
	}

	saved := cloneSubmission(submission)
	s.byID[saved.ID] = len(s.submissions)
	s.submissions = append(s.submissions, saved)

	out := cloneSubmission(saved)
	return &out, nil
}

func (s *Store) GetSubmission(_ context.Context, id string) (*domain.FormSubmission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := cloneSubmission(s.submissions[idx])
	return &out, nil
}

// ListSubmissions returns the newest submissions first. An empty form name
// matches every form.
func (s *Store) ListSubmissions(_ context.Context, form string, limit int) ([]domain.FormSubmission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.FormSubmission, 0)
	for i := len(s.submissions) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		sub := s.submissions[i]
		if form != "" && sub.Form != form {
			continue
		}
		out = append(out, cloneSubmission(sub))
	}
	return out, nil
}

func cloneSubmission(in domain.FormSubmission) domain.FormSubmission {
	out := in
	out.Fields = make(map[string]string, len(in.Fields))
	for k, v := range in.Fields {
		out.Fields[k] = v
	}
	return out
}
