package mission

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"taskpilot/internal/agents"
	"taskpilot/internal/metrics"
	"taskpilot/internal/observability"
	"taskpilot/internal/plan"
)

// toolStep never fails the mission; whatever the tool returns becomes
// context for later steps.
func (o *Orchestrator) toolStep(ctx context.Context, st *state, step plan.Step) {
	name := step.Tool()
	ctx, span := tracer.Start(ctx, "mission.tool_step", trace.WithAttributes(
		attribute.Int("taskpilot.step.id", step.ID),
		attribute.String("taskpilot.tool.name", name),
	))
	defer span.End()

	sm := metrics.StepMetrics{StepID: step.ID, Kind: "tool", Tool: name, Description: step.Description, Start: time.Now()}

	res := o.d.Tools.Execute(ctx, name, map[string]string{"argument": step.Description})
	o.log.Info("[Mission] tool result", "id", st.id, "step", step.ID, "tool", name, "preview", preview(res, o.opt.PreviewLength))
	st.appendContext("\n[Result from Step %d (%s)]:\n%s\n", step.ID, name, res)

	sm.Success = true
	sm.Finalize()
	st.mm.Steps = append(st.mm.Steps, sm)
	observability.RecordStep("tool", "done")
}

// codeStep reports whether the step passed within the attempt budget.
// Failed attempts only grow a step-local copy of the context; an exhausted
// step records its failure in the mission context.
func (o *Orchestrator) codeStep(ctx context.Context, st *state, step plan.Step) bool {
	ctx, span := tracer.Start(ctx, "mission.code_step", trace.WithAttributes(
		attribute.Int("taskpilot.step.id", step.ID),
	))
	defer span.End()

	sm := metrics.StepMetrics{StepID: step.ID, Kind: "code", Description: step.Description, Start: time.Now()}
	defer func() {
		sm.Finalize()
		st.mm.Steps = append(st.mm.Steps, sm)
		status := "failed"
		if sm.Success {
			status = "passed"
			span.SetStatus(codes.Ok, "passed")
		} else {
			span.SetStatus(codes.Error, "attempts exhausted")
		}
		observability.RecordStep("code", status)
	}()

	stepContext := st.context.String()
	lastNote := ""
	for attempt := 1; attempt <= o.opt.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return false
		}
		am, passed, note := o.attempt(ctx, st, step, attempt, stepContext)
		sm.Attempts = append(sm.Attempts, am)
		if passed {
			sm.Success = true
			observability.RecordCodeAttempt("passed")
			return true
		}
		observability.RecordCodeAttempt("failed")
		o.log.Warn("[Mission] attempt failed", "id", st.id, "step", step.ID, "attempt", attempt, "of", o.opt.MaxAttempts)
		stepContext += note
		lastNote = note
	}
	// Only the last attempt reaches the mission context, so the analyst
	// sees why the step was given up on.
	st.appendContext("\n[Step %d Failed]: %s\n%s", step.ID, step.Description, lastNote)
	return false
}

// attempt runs one generate, install, run, critique cycle. On failure it
// returns the text to add to the step context.
func (o *Orchestrator) attempt(ctx context.Context, st *state, step plan.Step, n int, stepContext string) (am metrics.AttemptMetrics, passed bool, note string) {
	ctx, span := tracer.Start(ctx, "mission.attempt", trace.WithAttributes(
		attribute.Int("taskpilot.step.id", step.ID),
		attribute.Int("taskpilot.attempt", n),
	))
	defer span.End()

	am = metrics.AttemptMetrics{Attempt: n, Start: time.Now()}
	defer am.Finalize()

	art, err := o.d.Coder.Write(ctx, step.Description, stepContext)
	if err != nil {
		span.RecordError(err)
		am.Err = err.Error()
		o.log.Error("[Mission] code generation failed", "id", st.id, "step", step.ID, "attempt", n, "err", err)
		return am, false, fmt.Sprintf("\nAttempt %d Error:\n%v\n", n, err)
	}
	am.Filename = art.Filename

	if fresh := st.deps.Missing(art.Dependencies); len(fresh) > 0 {
		o.log.Info("[Mission] installing", "id", st.id, "deps", fresh)
		o.d.Sandbox.Install(ctx, fresh)
		st.deps.Add(fresh...)
		am.Installed = append(am.Installed, fresh...)
		observability.RecordDependencyInstall("declared", len(fresh))
	}

	o.log.Info("[Mission] running", "id", st.id, "step", step.ID, "file", art.Filename)
	execLog := o.d.Sandbox.Run(ctx, art.Filename, nil).Log()

	review, err := o.d.Critic.Review(ctx, art.Filename, execLog)
	if err != nil {
		span.RecordError(err)
		review = agents.Critique{IsPassing: false, Feedback: err.Error()}
	}
	am.Feedback = review.Feedback

	if review.IsPassing {
		am.Passed = true
		o.log.Info("[Mission] step passed", "id", st.id, "step", step.ID, "file", art.Filename)
		if o.d.Memory != nil {
			if err := o.d.Memory.Memorize(ctx, step.Description, art.Code, art.Filename); err != nil {
				o.log.Warn("[Mission] could not memorize solution", "id", st.id, "err", err)
			}
		}
		st.appendContext("\n[Step %d Completed]: Created %s\n", step.ID, art.Filename)
		return am, true, ""
	}

	if pkg, ok := ResolveMissingModule(execLog, o.opt.PackageAliases); ok && !st.deps.Has(pkg) {
		o.log.Info("[Mission] auto-installing missing module", "id", st.id, "package", pkg)
		o.d.Sandbox.Install(ctx, []string{pkg})
		st.deps.Add(pkg)
		am.Installed = append(am.Installed, pkg)
		observability.RecordDependencyInstall("resolved", 1)
	}
	return am, false, fmt.Sprintf("\nAttempt %d Log:\n%s\nFix Suggestion: %s\n", n, execLog, review.SuggestedFix)
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
