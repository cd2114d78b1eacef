package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"taskpilot/internal/logger"
	"taskpilot/internal/tools"
)

var (
	// ErrClosed is returned to callers whose request could not be served
	// because the bridge shut down.
	ErrClosed = errors.New("bridge closed")
	// ErrUnavailable means no tool-server client is configured.
	ErrUnavailable = errors.New("external tool support unavailable")
)

// Server describes one out-of-process tool server.
type Server struct {
	Name    string
	Command string
	Args    []string
	Env     []string
}

func (s Server) label() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Command
}

// ToolInfo is one tool discovered on a server.
type ToolInfo struct {
	Name        string
	Description string
	Params      []tools.Param
}

// Item is one content element of a tool response.
type Item struct {
	Type  string // "text" for plain text, anything else is stringified
	Text  string
	Value any
}

// Session is a live, initialised connection to a tool server.
type Session interface {
	ListTools(ctx context.Context) ([]ToolInfo, error)
	CallTool(ctx context.Context, name string, args map[string]any) ([]Item, error)
	Close() error
}

// Dialer launches a server process and performs the protocol handshake.
type Dialer func(ctx context.Context, srv Server) (Session, error)

type reply struct {
	text  string
	names []string
	err   error
}

type request struct {
	ctx context.Context
	run func(ctx context.Context) reply
	out chan reply
}

// Bridge exposes tools hosted by external servers as ordinary synchronous
// registry entries. All protocol traffic happens on one worker goroutine;
// callers block on a per-call reply channel.
type Bridge struct {
	reg    *tools.Registry
	dial   Dialer
	log    *slog.Logger
	reqs   chan request
	quit   chan struct{}
	done   chan struct{}
	once   sync.Once
	ctx    context.Context
	cancel context.CancelFunc

	// owned by the worker goroutine
	sessions []Session
}

// New starts the worker. A nil dialer yields a bridge whose Connect
// always reports ErrUnavailable.
func New(reg *tools.Registry, dial Dialer, log *slog.Logger) *Bridge {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Bridge{
		reg:    reg,
		dial:   dial,
		log:    logger.OrDefault(log),
		reqs:   make(chan request),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
	go b.loop()
	return b
}

func (b *Bridge) loop() {
	defer close(b.done)
	for {
		select {
		case <-b.quit:
			return
		case req := <-b.reqs:
			ctx, stop := mergeCancel(req.ctx, b.ctx)
			req.out <- req.run(ctx)
			stop()
		}
	}
}

// mergeCancel returns a context carrying values and deadline of callerCtx
// that is also cancelled when the bridge shuts down.
func mergeCancel(callerCtx, bridgeCtx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(callerCtx)
	stop := context.AfterFunc(bridgeCtx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// submit hands fn to the worker and waits for its reply.
func (b *Bridge) submit(ctx context.Context, fn func(ctx context.Context) reply) reply {
	req := request{ctx: ctx, run: fn, out: make(chan reply, 1)}
	select {
	case b.reqs <- req:
	case <-b.done:
		return reply{err: ErrClosed}
	case <-ctx.Done():
		return reply{err: ctx.Err()}
	}
	select {
	case r := <-req.out:
		return r
	case <-b.done:
		// the worker may have answered right before exiting
		select {
		case r := <-req.out:
			return r
		default:
			return reply{err: ErrClosed}
		}
	}
}

// Connect launches srv, lists its tools and registers a wrapper for each
// one. It returns the registered tool names.
func (b *Bridge) Connect(ctx context.Context, srv Server) ([]string, error) {
	if b.dial == nil {
		return nil, ErrUnavailable
	}
	r := b.submit(ctx, func(ctx context.Context) reply {
		sess, err := b.dial(ctx, srv)
		if err != nil {
			return reply{err: fmt.Errorf("connect %s: %w", srv.label(), err)}
		}
		infos, err := sess.ListTools(ctx)
		if err != nil {
			_ = sess.Close()
			return reply{err: fmt.Errorf("list tools on %s: %w", srv.label(), err)}
		}
		b.sessions = append(b.sessions, sess)

		names := make([]string, 0, len(infos))
		for _, info := range infos {
			if info.Description == "" {
				info.Description = "External tool: " + info.Name
			}
			b.reg.Register(tools.Capability{
				Name:        info.Name,
				Description: info.Description,
				Params:      info.Params,
				Fn:          b.wrap(sess, info.Name),
			})
			names = append(names, info.Name)
		}
		sort.Strings(names)
		return reply{names: names}
	})
	if r.err != nil {
		return nil, r.err
	}
	b.log.Info("[Bridge] connected", "server", srv.label(), "tools", r.names)
	return r.names, nil
}

func (b *Bridge) wrap(sess Session, name string) tools.Func {
	return func(ctx context.Context, args map[string]string) (string, error) {
		r := b.submit(ctx, func(ctx context.Context) reply {
			payload := make(map[string]any, len(args))
			for k, v := range args {
				payload[k] = v
			}
			items, err := sess.CallTool(ctx, name, payload)
			if err != nil {
				return reply{err: err}
			}
			return reply{text: Flatten(items)}
		})
		return r.text, r.err
	}
}

// Flatten joins content items with newlines, stringifying non-text items.
func Flatten(items []Item) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		if it.Type == "text" {
			parts = append(parts, it.Text)
			continue
		}
		parts = append(parts, fmt.Sprint(it.Value))
	}
	return strings.Join(parts, "\n")
}

// Close stops the worker, fails every waiting caller with ErrClosed and
// closes all server sessions.
func (b *Bridge) Close() error {
	var errs []error
	b.once.Do(func() {
		close(b.quit)
		b.cancel()
		<-b.done
		for _, s := range b.sessions {
			if err := s.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		b.sessions = nil
	})
	return errors.Join(errs...)
}
