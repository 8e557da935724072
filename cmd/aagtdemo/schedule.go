package main

import (
	"context"
	"fmt"
	"time"

	"github.com/aagt-run/aagtcore/internal/agentloop"
	agentcontext "github.com/aagt-run/aagtcore/internal/context"
	"github.com/aagt-run/aagtcore/internal/coordinator"
	"github.com/aagt-run/aagtcore/internal/scheduler"
	"github.com/spf13/cobra"
)

func buildScheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Scheduler demonstrations",
	}
	cmd.AddCommand(buildScheduleDemoCmd())
	return cmd
}

func buildScheduleDemoCmd() *cobra.Command {
	var providerName string
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Register one agent-turn job and fire it immediately",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScheduleDemo(cmd.Context(), providerName)
		},
	}
	cmd.Flags().StringVar(&providerName, "provider", "offline", "Provider to use: anthropic, openai, or offline")
	return cmd
}

func runScheduleDemo(ctx context.Context, providerName string) error {
	provider := buildProvider(providerName)

	packer, err := agentcontext.NewPacker(agentcontext.DefaultPackOptions())
	if err != nil {
		return fmt.Errorf("build packer: %w", err)
	}
	loop := agentloop.New(provider, defaultRegistry(), packer, agentloop.DefaultConfig())

	coord := coordinator.New()
	coord.Register(coordinator.NewLoopAgent("assistant", loop))

	now := time.Now()
	sched := scheduler.New(
		scheduler.WithNow(func() time.Time { return now }),
		scheduler.WithCoordinatorResolver(func() (*coordinator.Coordinator, bool) { return coord, true }),
	)

	id, err := sched.AddJob("demo-turn", scheduler.AtSchedule(now), scheduler.NewAgentTurnPayload("assistant", "what time is it?"))
	if err != nil {
		return fmt.Errorf("add job: %w", err)
	}
	fmt.Printf("registered job %s\n", id)

	fired := sched.RunOnce(ctx)
	sched.Wait()
	fmt.Printf("%d job(s) fired\n", fired)
	return nil
}
