package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskpilot/internal/tools"
)

type fakeSession struct {
	tools  []ToolInfo
	call   func(ctx context.Context, name string, args map[string]any) ([]Item, error)
	closed atomic.Bool
}

func (f *fakeSession) ListTools(context.Context) ([]ToolInfo, error) { return f.tools, nil }

func (f *fakeSession) CallTool(ctx context.Context, name string, args map[string]any) ([]Item, error) {
	return f.call(ctx, name, args)
}

func (f *fakeSession) Close() error {
	f.closed.Store(true)
	return nil
}

func echoSession() *fakeSession {
	return &fakeSession{
		tools: []ToolInfo{
			{Name: "echo", Description: "Echo text", Params: []tools.Param{{Name: "text"}}},
			{Name: "shape", Description: "Mixed content"},
		},
		call: func(_ context.Context, name string, args map[string]any) ([]Item, error) {
			if name == "shape" {
				return []Item{{Type: "text", Text: "a"}, {Type: "image", Value: 42}, {Type: "text", Text: "b"}}, nil
			}
			return []Item{{Type: "text", Text: fmt.Sprint(args["text"])}}, nil
		},
	}
}

func dialerFor(sess Session, dials *atomic.Int32) Dialer {
	return func(context.Context, Server) (Session, error) {
		dials.Add(1)
		return sess, nil
	}
}

func TestConnectRegistersTools(t *testing.T) {
	reg := tools.New()
	var dials atomic.Int32
	sess := echoSession()
	b := New(reg, dialerFor(sess, &dials), nil)
	defer b.Close()

	names, err := b.Connect(context.Background(), Server{Name: "fs", Command: "fake"})
	require.NoError(t, err)

	assert.Equal(t, []string{"echo", "shape"}, names)
	assert.Equal(t, int32(1), dials.Load(), "one handshake per connect")
	assert.True(t, reg.Has("echo"))
	assert.Equal(t, "hi", reg.Execute(context.Background(), "echo", map[string]string{"argument": "hi"}))
	assert.Equal(t, "a\n42\nb", reg.Execute(context.Background(), "shape", nil))
}

func TestConnectFailures(t *testing.T) {
	reg := tools.New()

	b := New(reg, nil, nil)
	_, err := b.Connect(context.Background(), Server{Command: "x"})
	assert.ErrorIs(t, err, ErrUnavailable)
	require.NoError(t, b.Close())

	boom := errors.New("exec: not found")
	b = New(reg, func(context.Context, Server) (Session, error) { return nil, boom }, nil)
	_, err = b.Connect(context.Background(), Server{Command: "missing-server"})
	assert.ErrorIs(t, err, boom)
	require.NoError(t, b.Close())

	assert.Empty(t, reg.Names())
}

func TestConcurrentCallsDoNotCrossTalk(t *testing.T) {
	reg := tools.New()
	var dials atomic.Int32
	b := New(reg, dialerFor(echoSession(), &dials), nil)
	defer b.Close()
	_, err := b.Connect(context.Background(), Server{Command: "fake"})
	require.NoError(t, err)

	const callers = 32
	var wg sync.WaitGroup
	got := make([]string, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = reg.Execute(context.Background(), "echo", map[string]string{"text": fmt.Sprintf("msg-%d", i)})
		}(i)
	}
	wg.Wait()

	for i, g := range got {
		assert.Equal(t, fmt.Sprintf("msg-%d", i), g)
	}
}

func TestCloseUnblocksWaitingCallers(t *testing.T) {
	reg := tools.New()
	started := make(chan struct{}, 1)
	sess := &fakeSession{
		tools: []ToolInfo{{Name: "slow", Params: []tools.Param{{Name: "x"}}}},
		call: func(ctx context.Context, _ string, _ map[string]any) ([]Item, error) {
			started <- struct{}{}
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	var dials atomic.Int32
	b := New(reg, dialerFor(sess, &dials), nil)
	_, err := b.Connect(context.Background(), Server{Command: "fake"})
	require.NoError(t, err)

	results := make(chan string, 2)
	for i := 0; i < 2; i++ {
		go func() {
			results <- reg.Execute(context.Background(), "slow", map[string]string{"x": "1"})
		}()
	}
	<-started

	require.NoError(t, b.Close())
	for i := 0; i < 2; i++ {
		select {
		case out := <-results:
			assert.Contains(t, out, "Error executing tool:")
		case <-time.After(5 * time.Second):
			t.Fatal("caller still blocked after Close")
		}
	}
	assert.True(t, sess.closed.Load())

	_, err = b.Connect(context.Background(), Server{Command: "fake"})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestFlatten(t *testing.T) {
	testCases := []struct {
		name  string
		items []Item
		want  string
	}{
		{name: "Empty", items: nil, want: ""},
		{name: "Single text", items: []Item{{Type: "text", Text: "ok"}}, want: "ok"},
		{name: "Blob stringified", items: []Item{{Type: "resource", Value: map[string]string{"uri": "file:///a"}}}, want: "map[uri:file:///a]"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Flatten(tc.items))
		})
	}
}
