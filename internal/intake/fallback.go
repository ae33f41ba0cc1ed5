package intake

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// FallbackSink tries Primary and, when it fails, hands the form to
// Fallback. The fallback outcome is the result.
type FallbackSink struct {
	Primary  Sink
	Fallback Sink
	log      zerolog.Logger
}

func NewFallbackSink(primary Sink, fallback Sink, log zerolog.Logger) *FallbackSink {
	return &FallbackSink{
		Primary:  primary,
		Fallback: fallback,
		log:      log.With().Str("component", "intake.fallback").Logger(),
	}
}

func (s *FallbackSink) Submit(ctx context.Context, form Form) error {
	err := s.Primary.Submit(ctx, form)
	if err == nil || s.Fallback == nil {
		return err
	}
	s.log.Warn().Err(err).Str("form", form.Name).Msg("primary delivery failed, using fallback")
	return s.Fallback.Submit(ctx, form)
}

// DetachedSink fires the form at the wrapped sink in the background and
// reports success immediately. Delivery is never confirmed; failures are
// only logged.
type DetachedSink struct {
	sink    Sink
	timeout time.Duration
	log     zerolog.Logger
	wg      sync.WaitGroup
}

func NewDetachedSink(sink Sink, timeout time.Duration, log zerolog.Logger) *DetachedSink {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &DetachedSink{
		sink:    sink,
		timeout: timeout,
		log:     log.With().Str("component", "intake.detached").Logger(),
	}
}

func (s *DetachedSink) Submit(ctx context.Context, form Form) error {
	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		if err := s.sink.Submit(bg, form); err != nil {
			s.log.Warn().Err(err).Str("form", form.Name).Msg("detached delivery failed")
		}
	}()
	return nil
}

// Wait blocks until every detached delivery has finished.
func (s *DetachedSink) Wait() {
	s.wg.Wait()
}
