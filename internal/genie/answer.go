package genie

import (
	"context"
	"fmt"
	"time"

	"github.com/dbgenie/dbgenie/internal/log"
)

// Protocol defaults, matching the Genie API's human-paced cadence.
const (
	// DefaultWait is the default interval between status polls.
	DefaultWait = 5 * time.Second

	// DefaultMaxRetries is the default polling budget per query.
	DefaultMaxRetries = 20
)

// Options tunes a single query run.
type Options struct {
	// WaitSeconds is the polling interval. Zero polls without sleeping;
	// negative falls back to the default.
	WaitSeconds int

	// MaxRetries is the polling budget. Values <= 0 fall back to the
	// default.
	MaxRetries int
}

// Service is the query facade. It composes the poller and formatter and
// converts every terminal outcome, success or failure, into a display
// string: Answer never returns an error, so the conversational layer
// always has something to show.
type Service struct {
	api      transport
	defaults Options
	logger   log.Logger
}

// NewService creates the facade around a transport client.
// A negative default WaitSeconds resolves to DefaultWait; a zero one is
// kept (poll without sleeping). A MaxRetries default <= 0 resolves to
// DefaultMaxRetries.
func NewService(api transport, defaults Options, logger log.Logger) (*Service, error) {
	if api == nil {
		return nil, fmt.Errorf("transport is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if defaults.WaitSeconds < 0 {
		defaults.WaitSeconds = int(DefaultWait / time.Second)
	}
	if defaults.MaxRetries <= 0 {
		defaults.MaxRetries = DefaultMaxRetries
	}

	return &Service{api: api, defaults: defaults, logger: logger}, nil
}

// Answer runs one question end to end with the service defaults.
func (s *Service) Answer(ctx context.Context, question string) string {
	return s.AnswerWithOptions(ctx, question, s.defaults)
}

// AnswerWithOptions runs one question with per-call polling overrides.
func (s *Service) AnswerWithOptions(ctx context.Context, question string, opts Options) string {
	wait, retries := s.resolve(opts)

	poller, err := NewPoller(s.api, wait, retries, s.logger)
	if err != nil {
		// Unreachable with resolved options; still never let an error out.
		return fmt.Sprintf("Error with Genie: %v", err)
	}

	text, failure := poller.Run(ctx, question)
	if failure != nil {
		return failure.Message
	}
	return text
}

// resolve applies per-call fallback rules: a negative WaitSeconds or a
// MaxRetries <= 0 falls back to the service defaults; a zero WaitSeconds
// is honored (poll without sleeping).
func (s *Service) resolve(opts Options) (time.Duration, int) {
	waitSeconds := opts.WaitSeconds
	if waitSeconds < 0 {
		waitSeconds = s.defaults.WaitSeconds
	}

	retries := opts.MaxRetries
	if retries <= 0 {
		retries = s.defaults.MaxRetries
	}

	return time.Duration(waitSeconds) * time.Second, retries
}
