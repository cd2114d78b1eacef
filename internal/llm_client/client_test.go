package llm_client

import (
	"context"
	"errors"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedProvider struct {
	replies []string
	errs    []error
	calls   int
	system  string
	model   string
}

func (s *scriptedProvider) Init(Config) error { return nil }
func (s *scriptedProvider) Name() string      { return "fake" }
func (s *scriptedProvider) AllowedModelOrDefault(m string) string {
	if m == "" {
		return "fake-1"
	}
	return m
}

func (s *scriptedProvider) GenerateJSON(_ context.Context, system, _, model string, _ any) (string, error) {
	i := s.calls
	s.calls++
	s.system = system
	s.model = model
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	if err != nil {
		return "", err
	}
	if i < len(s.replies) {
		return s.replies[i], nil
	}
	return s.replies[len(s.replies)-1], nil
}

func newTestClient(p Provider, retries int) *Client {
	c := NewClient(p, Options{MaxRetries: retries}, nil)
	c.newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	return c
}

type verdict struct {
	IsPassing bool   `json:"is_passing"`
	Feedback  string `json:"feedback"`
}

func TestCompleteDecodesFencedJSON(t *testing.T) {
	p := &scriptedProvider{replies: []string{"```json\n{\"is_passing\": true, \"feedback\": \"ok\"}\n```"}}
	c := newTestClient(p, 3)

	var v verdict
	require.NoError(t, c.Complete(context.Background(), Request{Role: "critic", System: "judge", User: "log"}, &v))

	assert.True(t, v.IsPassing)
	assert.Equal(t, "ok", v.Feedback)
	assert.Equal(t, 1, p.calls)
	assert.Equal(t, "judge", p.system)
	assert.Equal(t, "fake-1", p.model)
}

func TestCompleteRetriesTransientFailures(t *testing.T) {
	p := &scriptedProvider{
		errs:    []error{errors.New("connection refused"), nil, nil},
		replies: []string{"", "not json at all", `{"is_passing": false, "feedback": "bad"}`},
	}
	c := newTestClient(p, 3)

	var v verdict
	require.NoError(t, c.Complete(context.Background(), Request{Role: "critic"}, &v))
	assert.Equal(t, 3, p.calls)
	assert.Equal(t, "bad", v.Feedback)
}

func TestCompleteRetryStartsFromEmptyValue(t *testing.T) {
	p := &scriptedProvider{replies: []string{
		`{"is_passing": true, "feedback": 5}`,
		`{"feedback": "no output at all"}`,
	}}
	c := newTestClient(p, 3)

	var v verdict
	require.NoError(t, c.Complete(context.Background(), Request{Role: "critic"}, &v))

	assert.Equal(t, 2, p.calls)
	assert.False(t, v.IsPassing, "a field from the rejected reply leaked into the accepted one")
	assert.Equal(t, "no output at all", v.Feedback)
}

func TestCompleteRejectsNonPointerTarget(t *testing.T) {
	p := &scriptedProvider{replies: []string{`{"is_passing": true}`}}
	c := newTestClient(p, 3)

	err := c.Complete(context.Background(), Request{Role: "critic"}, verdict{})
	assert.ErrorIs(t, err, ErrProvider)
	assert.Equal(t, 0, p.calls)
}

func TestCompleteGivesUp(t *testing.T) {
	boom := errors.New("model not loaded")
	p := &scriptedProvider{errs: []error{boom, boom, boom, boom, boom}}
	c := newTestClient(p, 2)

	var v verdict
	err := c.Complete(context.Background(), Request{Role: "planner"}, &v)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProvider)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, p.calls, "one call plus two retries")
}

func TestCompleteNotInitializedIsPermanent(t *testing.T) {
	p := &scriptedProvider{errs: []error{ErrNotInitialized}}
	c := newTestClient(p, 3)

	err := c.Complete(context.Background(), Request{Role: "coder"}, &verdict{})
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.Equal(t, 1, p.calls)

	var nilClient *Client
	assert.ErrorIs(t, nilClient.Complete(context.Background(), Request{}, &verdict{}), ErrProvider)
}

func TestCleanJSON(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "Plain object", input: `{"a":1}`, expected: `{"a":1}`},
		{name: "Fenced object", input: "```json\n{\"a\":1}\n```", expected: `{"a":1}`},
		{name: "Prose around", input: "Sure! Here it is: {\"a\":1} hope it helps", expected: `{"a":1}`},
		{name: "Array", input: "```\n[1,2]\n```", expected: `[1,2]`},
		{name: "No JSON", input: "nothing", expected: "nothing"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, CleanJSON(tc.input))
		})
	}
}

func TestNewProviderRejectsUnknownBackend(t *testing.T) {
	_, err := NewProvider(Config{Backend: "openai-compatible-thing"})
	assert.Error(t, err)
}
