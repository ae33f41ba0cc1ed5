// Package browser delivers intake forms by building and submitting a hidden
// HTML form inside a headless browser page.
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog"

	"simplepos/internal/intake"
)

const submitScript = `(action, fields) => {
	const form = document.createElement("form");
	form.action = action;
	form.method = "POST";
	form.style.display = "none";
	for (const [name, value] of fields) {
		const input = document.createElement("input");
		input.type = "hidden";
		input.name = name;
		input.value = value;
		form.appendChild(input);
	}
	document.body.appendChild(form);
	form.submit();
	return true;
}`

type FormSink struct {
	bin     string
	settle  time.Duration
	log     zerolog.Logger
	mu      sync.Mutex
	browser *rod.Browser
}

// New prepares a sink. The browser is launched lazily on first use; bin may
// be empty to let the launcher locate or download one.
func New(bin string, log zerolog.Logger) *FormSink {
	return &FormSink{
		bin:    bin,
		settle: 2 * time.Second,
		log:    log.With().Str("component", "intake.browser").Logger(),
	}
}

func (s *FormSink) connect() (*rod.Browser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.browser != nil {
		return s.browser, nil
	}

	l := launcher.New().Headless(true).Leakless(false)
	if s.bin != "" {
		l = l.Bin(s.bin)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	s.browser = b
	return b, nil
}

func (s *FormSink) Submit(ctx context.Context, form intake.Form) error {
	if form.Action == "" {
		return intake.ErrNoAction
	}

	b, err := s.connect()
	if err != nil {
		return err
	}

	page, err := b.Context(ctx).Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return fmt.Errorf("open page: %w", err)
	}
	defer func() {
		_ = page.Close()
	}()

	fields := make([][2]string, 0, len(form.Fields))
	for _, f := range form.Fields {
		fields = append(fields, [2]string{f.Name, f.Value})
	}

	if _, err := page.Eval(submitScript, form.Action, fields); err != nil {
		return fmt.Errorf("submit %s form: %w", form.Name, err)
	}

	select {
	case <-time.After(s.settle):
	case <-ctx.Done():
	}
	s.log.Debug().Str("form", form.Name).Msg("form submitted through browser")
	return nil
}

func (s *FormSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.browser == nil {
		return nil
	}
	err := s.browser.Close()
	s.browser = nil
	return err
}
