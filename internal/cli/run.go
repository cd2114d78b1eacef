package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"taskpilot/internal/display"
	"taskpilot/internal/listener"
	"taskpilot/internal/plan"
	"taskpilot/internal/supervisor"
)

var (
	runPlanFile  string
	runPlanNames []string
	runMCP       []string
	runYes       bool
)

var errMissionFailed = errors.New("one or more missions failed")

var runCmd = &cobra.Command{
	Use:   "run [objective]",
	Short: "Run one objective, or the missions of a plan file, and exit",
	Example: `  taskpilot run "print the factorial of 5"
  taskpilot run --plan plans.json --plan-names build,report`,
	RunE: func(cmd *cobra.Command, args []string) error {
		objective := strings.TrimSpace(strings.Join(args, " "))
		if objective == "" && runPlanFile == "" {
			return errors.New("an objective or --plan is required")
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := buildApp(ctx, cfg, runMCP)
		if err != nil {
			return err
		}
		defer a.Close()

		missions, err := a.prepareMissions(ctx, objective)
		if err != nil {
			return err
		}
		if len(missions) == 0 {
			return nil
		}
		return a.runToCompletion(ctx, cmd, missions)
	},
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runPlanFile, "plan", "", "JSON file with one or more prepared plans")
	f.StringSliceVar(&runPlanNames, "plan-names", nil, "run only the named plans from --plan")
	f.StringArrayVar(&runMCP, "mcp", nil, `external tool server command, e.g. --mcp "npx server-foo"`)
	f.BoolVarP(&runYes, "yes", "y", false, "run risky plans without asking")
}

// prepareMissions returns the plans to run, each confirmed by the user
// when it would run shell commands.
func (a *app) prepareMissions(ctx context.Context, objective string) ([]plan.NamedPlan, error) {
	if runPlanFile == "" {
		p, err := a.orchestrator.Preview(ctx, objective)
		if err != nil {
			return nil, fmt.Errorf("plan generation failed: %w", err)
		}
		a.log.Info("plan generated", "objective", objective, "plan", display.FormatPlanFull(p))
		fmt.Println(display.FormatPlan(p))
		if supervisor.IsPlanRisky(p) && !confirm("This plan runs shell commands. Execute it?") {
			fmt.Println("Plan rejected.")
			return nil, nil
		}
		return []plan.NamedPlan{{Name: objective, Plan: p}}, nil
	}

	plans, err := plan.LoadPlansFromFile(runPlanFile)
	if err != nil {
		return nil, err
	}
	if len(runPlanNames) > 0 {
		selected, missing := plan.SelectPlansByNames(plans, runPlanNames)
		if len(missing) > 0 {
			fmt.Printf("Missing missions: %v\n", missing)
		}
		plans = selected
	}
	valid := make([]plan.NamedPlan, 0, len(plans))
	for _, p := range plans {
		if err := plan.Validate(p.Plan); err != nil {
			fmt.Printf("Invalid mission %q: %v\n", p.Name, err)
			continue
		}
		valid = append(valid, p)
	}
	if len(valid) == 0 {
		return nil, errors.New("no valid missions to run")
	}

	fmt.Print(display.FormatPlansCatalog(runPlanFile, valid))
	risky := false
	for _, p := range valid {
		risky = risky || supervisor.IsPlanRisky(p.Plan)
	}
	if risky && !confirm(fmt.Sprintf("About to run %d mission(s) from %s, some run shell commands. Proceed?", len(valid), runPlanFile)) {
		fmt.Println("Cancelled.")
		return nil, nil
	}
	return valid, nil
}

func confirm(question string) bool {
	if runYes {
		return true
	}
	l, err := listener.New("")
	if err != nil {
		return false
	}
	defer l.Close()
	return l.AskYesNo(question)
}

// runToCompletion queues every mission and waits for all of them.
func (a *app) runToCompletion(ctx context.Context, cmd *cobra.Command, missions []plan.NamedPlan) error {
	a.supervisor.Start(ctx)
	for _, m := range missions {
		id, err := a.supervisor.Submit(m.Name, m.Plan)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Submitted mission %s (%s)\n", id, m.Name)
	}

	failed := 0
	for range missions {
		var r supervisor.MissionResult
		select {
		case r = <-a.supervisor.Results():
		case <-ctx.Done():
			return ctx.Err()
		}
		printResult(cmd, r)
		if r.State != supervisor.StatusSucceeded {
			failed++
		}
	}
	if failed > 0 {
		return errMissionFailed
	}
	return nil
}

func printResult(cmd *cobra.Command, r supervisor.MissionResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "[Mission %s %s] %s\n", r.MissionID, r.State, r.Status)
	if r.Analysis != nil {
		fmt.Fprintf(out, "Root cause: %s\nLesson: %s\n", r.Analysis.RootCause, r.Analysis.LessonLearned)
	}
	if r.Metrics != nil {
		fmt.Fprintln(out, display.FormatMissionMetrics(r.Metrics))
	}
}
