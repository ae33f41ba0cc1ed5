package intake

import (
	"context"
	"time"

	"github.com/google/uuid"

	"simplepos/internal/domain"
	"simplepos/internal/store"
)

// RecordSink stores every form in a repository instead of posting it.
type RecordSink struct {
	repo store.Repository
	now  func() time.Time
}

func NewRecordSink(repo store.Repository) *RecordSink {
	return &RecordSink{repo: repo, now: time.Now}
}

func (s *RecordSink) Submit(ctx context.Context, form Form) error {
	_, err := s.repo.SaveSubmission(ctx, domain.FormSubmission{
		ID:        uuid.NewString(),
		Form:      form.Name,
		Action:    form.Action,
		Fields:    form.Map(),
		CreatedAt: s.now().UTC(),
	})
	return err
}
