package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"taskpilot/internal/display"
	"taskpilot/internal/listener"
	"taskpilot/internal/supervisor"
)

var chatMCP []string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive session: every line is a new mission",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := buildApp(ctx, cfg, chatMCP)
		if err != nil {
			return err
		}
		defer a.Close()

		l, err := listener.New(".taskpilot_history")
		if err != nil {
			return fmt.Errorf("failed to init terminal input: %w", err)
		}
		defer l.Close()

		a.supervisor.Start(ctx)
		go reportResults(ctx, a.supervisor, l)

		l.AsyncPrintln("Hello! What should I do? (/tools, /missions, /cancel [id], exit)")
		for {
			input, ok := l.GetInput()
			if !ok || strings.EqualFold(input, "exit") {
				fmt.Println("Goodbye!")
				return nil
			}
			if input == "" {
				continue
			}
			if strings.HasPrefix(input, "/") {
				a.chatCommand(l, input)
				continue
			}
			a.chatMission(ctx, l, input)
		}
	},
}

func init() {
	chatCmd.Flags().StringArrayVar(&chatMCP, "mcp", nil, "external tool server command")
}

// reportResults prints finished missions without breaking the current input.
func reportResults(ctx context.Context, s *supervisor.Supervisor, l *listener.Listener) {
	for {
		select {
		case <-ctx.Done():
			return
		case r := <-s.Results():
			l.AsyncPrintln(fmt.Sprintf("[Mission %s %s] %s", r.MissionID, r.State, r.Status))
			if r.Analysis != nil {
				l.AsyncPrintln("Root cause: " + r.Analysis.RootCause)
			}
			if r.Metrics != nil {
				l.AsyncPrintln(display.FormatMissionMetrics(r.Metrics))
			}
		}
	}
}

func (a *app) chatCommand(l *listener.Listener, input string) {
	fields := strings.Fields(input)
	switch fields[0] {
	case "/tools":
		l.AsyncPrintln(strings.Join(a.registry.Names(), ", "))
	case "/missions":
		for _, r := range a.supervisor.List() {
			l.AsyncPrintln(fmt.Sprintf("%s  %-9s  %s", r.MissionID, r.State, r.Objective))
		}
	case "/cancel":
		id := ""
		if len(fields) > 1 {
			id = fields[1]
		}
		got, err := a.supervisor.Cancel(id)
		if err != nil {
			l.AsyncPrintln(err.Error())
			return
		}
		l.AsyncPrintln(fmt.Sprintf("Cancelling mission %s", got))
	default:
		l.AsyncPrintln("Unknown command " + fields[0])
	}
}

// chatMission plans objective up front so risky plans can be confirmed.
func (a *app) chatMission(ctx context.Context, l *listener.Listener, objective string) {
	planID := uuid.New().String()[:8]
	l.AsyncPrintln(fmt.Sprintf("Generating plan %s ...", planID))

	p, err := a.orchestrator.Preview(ctx, objective)
	if err != nil {
		l.AsyncPrintln(fmt.Sprintf("[Plan generation FAILED] %v", err))
		return
	}
	a.log.Info("plan generated", "plan_id", planID, "objective", objective, "plan", display.FormatPlanFull(p))

	if supervisor.IsPlanRisky(p) {
		l.AsyncPrintln(display.FormatPlan(p))
		if !l.AskYesNo("Do you want to execute this plan?") {
			l.AsyncPrintln(fmt.Sprintf("[Plan %s REJECTED]", planID))
			return
		}
	}

	id, err := a.supervisor.Submit(objective, p)
	if err != nil {
		l.AsyncPrintln(fmt.Sprintf("[Plan %s NOT SUBMITTED] %v", planID, err))
		return
	}
	l.AsyncPrintln(fmt.Sprintf("[Plan %s ACCEPTED] Mission %s queued", planID, id))
}
