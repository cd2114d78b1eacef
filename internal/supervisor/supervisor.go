package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"taskpilot/internal/logger"
	"taskpilot/internal/mission"
	"taskpilot/internal/plan"
)

var (
	ErrQueueFull  = errors.New("mission queue is full")
	ErrNotRunning = errors.New("no mission is currently running")
	ErrStopped    = errors.New("supervisor stopped")
)

// Runner executes one mission to completion.
type Runner interface {
	Run(ctx context.Context, objective string) mission.Outcome
	RunPlan(ctx context.Context, objective string, p *plan.Plan) mission.Outcome
}

// Supervisor runs submitted missions one at a time, in order. The single
// sandbox cannot serve two missions at once.
type Supervisor struct {
	runner  Runner
	log     *slog.Logger
	queue   chan *Mission
	results chan MissionResult

	mu        sync.Mutex
	missions  map[string]*Mission
	done      map[string]MissionResult
	order     []string
	current   *Mission
	curCancel context.CancelFunc
	stopped   bool
}

func New(runner Runner, queueSize int, log *slog.Logger) *Supervisor {
	if queueSize <= 0 {
		queueSize = 100
	}
	return &Supervisor{
		runner:   runner,
		log:      logger.OrDefault(log),
		queue:    make(chan *Mission, queueSize),
		results:  make(chan MissionResult, queueSize),
		missions: make(map[string]*Mission),
		done:     make(map[string]MissionResult),
	}
}

// Start consumes the queue until ctx ends.
func (s *Supervisor) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				s.mu.Lock()
				s.stopped = true
				s.mu.Unlock()
				return
			case m := <-s.queue:
				s.log.Info("[Supervisor] starting mission", "id", m.ID, "objective", m.Objective)
				s.runMission(ctx, m)
			}
		}
	}()
}

// Submit queues objective, with an optional prepared plan, and returns the
// mission id.
func (s *Supervisor) Submit(objective string, p *plan.Plan) (string, error) {
	m := &Mission{
		ID:        uuid.New().String()[:8],
		Objective: objective,
		Plan:      p,
		State:     StatusPending,
		Submitted: time.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return "", ErrStopped
	}
	select {
	case s.queue <- m:
	default:
		return "", ErrQueueFull
	}
	s.missions[m.ID] = m
	s.order = append(s.order, m.ID)
	return m.ID, nil
}

// Results delivers every finished mission. Results nobody reads are
// dropped once the buffer is full; Get still has them.
func (s *Supervisor) Results() <-chan MissionResult { return s.results }

// Get returns the result of a finished mission, or a snapshot of a queued
// or running one.
func (s *Supervisor) Get(id string) (MissionResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(id)
}

func (s *Supervisor) getLocked(id string) (MissionResult, bool) {
	if r, ok := s.done[id]; ok {
		return r, true
	}
	m, ok := s.missions[id]
	if !ok {
		return MissionResult{}, false
	}
	return MissionResult{MissionID: m.ID, Objective: m.Objective, State: m.State, Submitted: m.Submitted}, true
}

// List returns every known mission, oldest first.
func (s *Supervisor) List() []MissionResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]MissionResult, 0, len(s.order))
	for _, id := range s.order {
		if r, ok := s.getLocked(id); ok {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Submitted.Before(out[j].Submitted) })
	return out
}

// Cancel stops the running mission when its id matches (or id is empty).
func (s *Supervisor) Cancel(id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil || s.current.State != StatusRunning {
		return "", ErrNotRunning
	}
	if id != "" && !strings.EqualFold(s.current.ID, id) {
		return "", fmt.Errorf("mission %s is not running (current running: %s)", id, s.current.ID)
	}
	s.curCancel()
	return s.current.ID, nil
}

func (s *Supervisor) runMission(parent context.Context, m *Mission) {
	ctx, cancel := context.WithCancel(parent)
	s.mu.Lock()
	m.State = StatusRunning
	s.current = m
	s.curCancel = cancel
	s.mu.Unlock()
	defer cancel()

	var out mission.Outcome
	if m.Plan != nil {
		out = s.runner.RunPlan(ctx, m.Objective, m.Plan)
	} else {
		out = s.runner.Run(ctx, m.Objective)
	}

	result := MissionResult{
		MissionID:    m.ID,
		Objective:    m.Objective,
		Status:       out.Text(),
		Dependencies: out.Dependencies,
		Analysis:     out.Analysis,
		Metrics:      out.Metrics,
		Submitted:    m.Submitted,
	}
	switch {
	case out.Succeeded():
		result.State = StatusSucceeded
	case errors.Is(out.Err, context.Canceled):
		result.State = StatusCancelled
	default:
		result.State = StatusFailed
	}
	if out.Err != nil {
		result.Error = out.Err.Error()
	}
	s.log.Info("[Supervisor] mission finished", "id", m.ID, "state", result.State, "status", result.Status)

	s.mu.Lock()
	m.State = result.State
	s.done[m.ID] = result
	s.current = nil
	s.curCancel = nil
	s.mu.Unlock()

	select {
	case s.results <- result:
	default:
		s.log.Warn("[Supervisor] result channel full, dropping", "id", m.ID)
	}
}
