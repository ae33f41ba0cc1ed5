package intake

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// HTTPSink posts forms as url-encoded bodies. The intake endpoint is
// treated as opaque: any response, whatever its status, counts as
// delivered. Only transport failures are errors.
type HTTPSink struct {
	client *http.Client
	log    zerolog.Logger
}

func NewHTTPSink(timeout time.Duration, log zerolog.Logger) *HTTPSink {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSink{
		client: &http.Client{Timeout: timeout},
		log:    log.With().Str("component", "intake.http").Logger(),
	}
}

func (s *HTTPSink) Submit(ctx context.Context, form Form) error {
	if strings.TrimSpace(form.Action) == "" {
		return ErrNoAction
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, form.Action, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build %s request: %w", form.Name, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s form: %w", form.Name, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.log.Warn().
			Str("form", form.Name).
			Int("status", resp.StatusCode).
			Msg("intake endpoint returned non-success status")
	}
	return nil
}
