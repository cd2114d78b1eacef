// Package mission drives one objective from plan to terminal status:
// tool steps go to the registry, code steps go through a bounded
// generate, run and critique loop.
package mission

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"taskpilot/internal/agents"
	"taskpilot/internal/logger"
	"taskpilot/internal/metrics"
	"taskpilot/internal/observability"
	"taskpilot/internal/plan"
	"taskpilot/internal/sandbox"
	"taskpilot/internal/workspace"
)

const (
	DefaultMaxAttempts   = 3
	DefaultPreviewLength = 200
)

var tracer = otel.Tracer("taskpilot/mission")

type Planner interface {
	Plan(ctx context.Context, objective, missionContext string) (*plan.Plan, error)
}

type Coder interface {
	Write(ctx context.Context, instruction, attemptContext string) (*workspace.Artifact, error)
}

type Critic interface {
	Review(ctx context.Context, filename, log string) (agents.Critique, error)
}

type Analyst interface {
	Analyze(ctx context.Context, objective, missionContext string) (agents.AnalystResult, error)
}

type Memory interface {
	Recall(ctx context.Context, query string) string
	Memorize(ctx context.Context, objective, code, filename string) error
}

type Sandbox interface {
	Install(ctx context.Context, deps []string) sandbox.Result
	Run(ctx context.Context, filename string, deps []string) sandbox.Result
}

type Tools interface {
	Execute(ctx context.Context, name string, args map[string]string) string
}

// Deps are the collaborators of a mission. Analyst and Memory are optional.
type Deps struct {
	Planner Planner
	Coder   Coder
	Critic  Critic
	Analyst Analyst
	Memory  Memory
	Sandbox Sandbox
	Tools   Tools
	Log     *slog.Logger
}

type Options struct {
	MaxAttempts    int
	PackageAliases map[string]string
	PreviewLength  int
}

type Orchestrator struct {
	d   Deps
	opt Options
	log *slog.Logger
}

func New(d Deps, opt Options) *Orchestrator {
	if opt.MaxAttempts <= 0 {
		opt.MaxAttempts = DefaultMaxAttempts
	}
	if opt.PreviewLength <= 0 {
		opt.PreviewLength = DefaultPreviewLength
	}
	if opt.PackageAliases == nil {
		opt.PackageAliases = map[string]string{}
	}
	return &Orchestrator{d: d, opt: opt, log: logger.OrDefault(d.Log)}
}

// state is everything one mission mutates. It never outlives Run.
type state struct {
	id        string
	objective string
	context   strings.Builder
	deps      *depSet
	mm        *metrics.MissionMetrics
}

func (s *state) appendContext(format string, args ...any) {
	fmt.Fprintf(&s.context, format, args...)
}

// Run recalls prior knowledge, plans the objective and executes the plan.
// Planning failures come back as a failed Outcome.
func (o *Orchestrator) Run(ctx context.Context, objective string) Outcome {
	return o.run(ctx, objective, nil)
}

// RunPlan executes a prepared plan, skipping the planner.
func (o *Orchestrator) RunPlan(ctx context.Context, objective string, p *plan.Plan) Outcome {
	if p == nil {
		p = &plan.Plan{}
	}
	return o.run(ctx, objective, p)
}

// Preview recalls prior knowledge and plans objective without running
// anything, so a caller can confirm the plan and hand it to RunPlan.
func (o *Orchestrator) Preview(ctx context.Context, objective string) (*plan.Plan, error) {
	st := &state{objective: objective, mm: &metrics.MissionMetrics{}}
	if o.d.Memory != nil {
		st.context.WriteString(o.d.Memory.Recall(ctx, objective))
	}
	return o.plan(ctx, st)
}

func (o *Orchestrator) run(ctx context.Context, objective string, prepared *plan.Plan) (out Outcome) {
	st := &state{
		id:        uuid.New().String()[:8],
		objective: objective,
		deps:      newDepSet(),
		mm:        &metrics.MissionMetrics{Start: time.Now()},
	}
	st.mm.MissionID = st.id

	ctx, span := tracer.Start(ctx, "mission.run", trace.WithAttributes(
		attribute.String("taskpilot.mission.id", st.id),
		attribute.String("taskpilot.mission.objective", objective),
	))
	defer span.End()

	defer func() {
		st.mm.Succeeded = out.Succeeded()
		st.mm.Dependencies = st.deps.List()
		st.mm.Finalize()
		out.Context = st.context.String()
		out.Dependencies = st.deps.List()
		out.Metrics = st.mm
		observability.RecordMission(out.Status.String(), st.mm.DurationMs)

		span.SetAttributes(attribute.Int("taskpilot.mission.steps", len(st.mm.Steps)))
		if out.Succeeded() {
			span.SetStatus(codes.Ok, "complete")
			o.log.Info("[Mission] complete", "id", st.id, "duration_ms", st.mm.DurationMs)
		} else {
			span.SetStatus(codes.Error, out.Text())
			o.log.Error("[Mission] failed", "id", st.id, "status", out.Text())
		}
	}()

	o.log.Info("[Mission] starting", "id", st.id, "objective", objective)
	if o.d.Memory != nil {
		st.context.WriteString(o.d.Memory.Recall(ctx, objective))
	}

	p := prepared
	if p == nil {
		var err error
		p, err = o.plan(ctx, st)
		if err != nil {
			return o.fail(ctx, st, Outcome{Status: StatusFailed, Err: err})
		}
	} else if err := plan.Validate(p); err != nil {
		return o.fail(ctx, st, Outcome{Status: StatusFailed, Err: err, Plan: p})
	}
	toolSteps, codeSteps := p.CountKinds()
	o.log.Info("[Mission] plan ready", "id", st.id, "steps", len(p.Steps), "tool_steps", toolSteps, "code_steps", codeSteps)

	for _, step := range p.Steps {
		if err := ctx.Err(); err != nil {
			return o.fail(ctx, st, Outcome{Status: StatusFailed, FailedStep: step.Description, Err: err, Plan: p})
		}
		o.log.Info("[Mission] step", "id", st.id, "step", step.ID, "description", step.Description)

		if step.IsToolStep() {
			o.toolStep(ctx, st, step)
			continue
		}
		if !o.codeStep(ctx, st, step) {
			// Err stays nil unless the step stopped on cancellation.
			return o.fail(ctx, st, Outcome{Status: StatusFailed, FailedStep: step.Description, Err: ctx.Err(), Plan: p})
		}
	}
	return Outcome{Status: StatusComplete, Plan: p}
}

func (o *Orchestrator) plan(ctx context.Context, st *state) (*plan.Plan, error) {
	ctx, span := tracer.Start(ctx, "mission.plan")
	defer span.End()

	start := time.Now()
	p, err := o.d.Planner.Plan(ctx, st.objective, st.context.String())
	st.mm.PlanningMs = time.Since(start).Milliseconds()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.log.Error("[Mission] planning failed", "id", st.id, "err", err)
		return nil, err
	}
	return p, nil
}

// fail runs the optional analyst and returns out with its analysis.
func (o *Orchestrator) fail(ctx context.Context, st *state, out Outcome) Outcome {
	if o.d.Analyst == nil || ctx.Err() != nil {
		return out
	}
	res, err := o.d.Analyst.Analyze(ctx, st.objective, st.context.String())
	if err != nil {
		o.log.Warn("[Mission] failure analysis unavailable", "id", st.id, "err", err)
		return out
	}
	o.log.Info("[Mission] failure analysis", "id", st.id, "root_cause", res.RootCause, "lesson", res.LessonLearned)
	out.Analysis = &res
	return out
}
