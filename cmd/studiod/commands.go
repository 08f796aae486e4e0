package main

import (
	"context"
	"fmt"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"studiod"
)

func createServeCommand(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the orchestrator daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := studiod.LoadConfig(flags.ConfigPath)
			if err != nil {
				return err
			}
			orch, err := studiod.New(cfg)
			if err != nil {
				return err
			}
			// Children are terminated before exit; see Orchestrator.Run.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return orch.Run(ctx)
		},
	}
}

func addClientFlags(cmd *cobra.Command, flags *ClientFlags) {
	cmd.Flags().StringVar(&flags.APIUrl, "api-url", "http://localhost:3000/api", "base URL of a running studiod daemon")
	// Starts block until the service is ready (or the daemon's readiness
	// budget runs out), so the client waits longer than the budget.
	cmd.Flags().StringVar(&flags.APITimeout, "api-timeout", "2m", "request timeout")
}

func clientFrom(flags *ClientFlags) (*apiClient, error) {
	timeout, err := time.ParseDuration(flags.APITimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid --api-timeout: %w", err)
	}
	return newAPIClient(flags.APIUrl, timeout), nil
}

func createStatusCommand(flags *ClientFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the status of all managed services",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cl, err := clientFrom(flags)
			if err != nil {
				return err
			}
			views, err := cl.Status()
			if err != nil {
				return err
			}
			names := make([]string, 0, len(views))
			for n := range views {
				names = append(names, n)
			}
			sort.Strings(names)
			for _, n := range names {
				v := views[n]
				cmd.Printf("%-16s %-13s port=%d\n", n, v.Status, v.Port)
			}
			return nil
		},
	}
	addClientFlags(cmd, flags)
	return cmd
}

func createStartCommand(flags *ClientFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start NAME",
		Short: "Start a managed service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := clientFrom(flags)
			if err != nil {
				return err
			}
			if err := cl.Start(args[0]); err != nil {
				return err
			}
			cmd.Printf("started %s\n", args[0])
			return nil
		},
	}
	addClientFlags(cmd, flags)
	return cmd
}

func createStopCommand(flags *ClientFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop NAME",
		Short: "Stop a managed service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := clientFrom(flags)
			if err != nil {
				return err
			}
			if err := cl.Stop(args[0]); err != nil {
				return err
			}
			cmd.Printf("stopped %s\n", args[0])
			return nil
		},
	}
	addClientFlags(cmd, flags)
	return cmd
}
