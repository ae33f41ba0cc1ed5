package store

import (
	"context"
	"errors"

	"simplepos/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidSubmission = errors.New("invalid submission")
)

// Repository records delivered intake forms for deployments that keep
// submissions locally instead of posting them to the hosted forms.
type Repository interface {
	SaveSubmission(ctx context.Context, submission domain.FormSubmission) (*domain.FormSubmission, error)
	GetSubmission(ctx context.Context, id string) (*domain.FormSubmission, error)
	ListSubmissions(ctx context.Context, form string, limit int) ([]domain.FormSubmission, error)
}

func Validate(submission domain.FormSubmission) error {
	if submission.ID == "" || submission.Form == "" {
		return ErrInvalidSubmission
	}
	return nil
}
