package llm_client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"taskpilot/internal/logger"
	"taskpilot/internal/observability"
)

const (
	DefaultTimeout    = 300 * time.Second
	DefaultMaxRetries = 3
)

// Request is one structured completion call.
type Request struct {
	Role   string // used for logging and metrics only
	Model  string
	System string
	User   string
	Schema any
}

// Client turns provider text into typed values with a bounded wait and a
// few retries.
type Client struct {
	provider   Provider
	timeout    time.Duration
	maxRetries uint64
	log        *slog.Logger

	// newBackOff is swapped in tests to avoid real sleeps.
	newBackOff func() backoff.BackOff
}

type Options struct {
	Timeout    time.Duration
	MaxRetries int
}

func NewClient(p Provider, opts Options, log *slog.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	return &Client{
		provider:   p,
		timeout:    opts.Timeout,
		maxRetries: uint64(opts.MaxRetries),
		log:        logger.OrDefault(log),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = time.Second
			b.MaxInterval = 10 * time.Second
			return b
		},
	}
}

// Complete asks the provider for JSON matching req.Schema and decodes it
// into out. Every failure is wrapped with ErrProvider.
func (c *Client) Complete(ctx context.Context, req Request, out any) error {
	if c == nil || c.provider == nil {
		return fmt.Errorf("%w: %w", ErrProvider, ErrNotInitialized)
	}
	dst := reflect.ValueOf(out)
	if dst.Kind() != reflect.Pointer || dst.IsNil() {
		return fmt.Errorf("%w: %s: decode target must be a non-nil pointer, got %T", ErrProvider, req.Role, out)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	model := c.provider.AllowedModelOrDefault(req.Model)
	start := time.Now()
	attempt := 0

	op := func() error {
		attempt++
		raw, err := c.provider.GenerateJSON(ctx, req.System, req.User, model, req.Schema)
		if err != nil {
			if errors.Is(err, ErrNotInitialized) {
				return backoff.Permanent(err)
			}
			return err
		}
		// A rejected reply must not leave fields behind for the next one.
		fresh := reflect.New(dst.Elem().Type())
		if err := json.Unmarshal([]byte(CleanJSON(raw)), fresh.Interface()); err != nil {
			return fmt.Errorf("decode %s response: %w", req.Role, err)
		}
		dst.Elem().Set(fresh.Elem())
		return nil
	}
	notify := func(err error, wait time.Duration) {
		c.log.Warn("[LLM] call failed, retrying", "role", req.Role, "model", model, "attempt", attempt, "wait", wait, "err", err)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), c.maxRetries), ctx)
	err := backoff.RetryNotify(op, b, notify)

	status := "ok"
	if err != nil {
		status = "error"
	}
	observability.RecordLLMCall(c.provider.Name(), model, status, time.Since(start).Milliseconds())
	if err != nil {
		c.log.Error("[LLM] call failed", "role", req.Role, "model", model, "attempts", attempt, "err", err)
		return fmt.Errorf("%w: %s: %w", ErrProvider, req.Role, err)
	}
	c.log.Debug("[LLM] call done", "role", req.Role, "model", model, "attempts", attempt, "elapsed", time.Since(start))
	return nil
}

var fenceRe = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")

// CleanJSON strips markdown fences and any prose around the outermost JSON
// value.
func CleanJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if m := fenceRe.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return s
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end < start {
		return s[start:]
	}
	return s[start : end+1]
}
