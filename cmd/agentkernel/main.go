// Command agentkernel is a thin CLI wrapper around the kernel package: it
// loads a YAML configuration, assembles a Kernel with demo bindings (an
// in-memory memory store, pass-through worker handlers), and runs a single
// goal read from a file or stdin. It exists to exercise the kernel end to
// end, not as a production service entry point.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"goa.design/agentkernel/apitypes"
	"goa.design/agentkernel/config"
	"goa.design/agentkernel/kernel"
	memoryinmem "goa.design/agentkernel/memory/inmem"
	"goa.design/agentkernel/phase"
	"goa.design/agentkernel/worker"
)

var version = "0.0.0-dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "agentkernel",
		Short:         "agentkernel runs multi-agent workflow goals against a configured kernel",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "agentkernel version %s\n", version)
		},
	})
	cmd.AddCommand(newValidateCommand())
	cmd.AddCommand(newRunCommand())

	return cmd
}

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config.yaml>",
		Short: "load and validate a kernel configuration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d worker(s), %d stdio mcp client(s), %d http mcp client(s)\n",
				len(cfg.Workers), len(cfg.MCP.Stdio), len(cfg.MCP.StreamableHTTP))
			return nil
		},
	}
}

func newRunCommand() *cobra.Command {
	var goalPath string
	cmd := &cobra.Command{
		Use:   "run <config.yaml>",
		Short: "run a goal against a kernel assembled with demo bindings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}

			goal, err := readGoal(goalPath)
			if err != nil {
				return err
			}

			k, err := kernel.New(kernel.Options{
				Config:   cfg,
				Bindings: demoBindings(cfg),
			})
			if err != nil {
				return fmt.Errorf("assembling kernel: %w", err)
			}

			result, err := k.Run(context.Background(), goal)
			if err != nil {
				return fmt.Errorf("running goal: %w", err)
			}

			return json.NewEncoder(cmd.OutOrStdout()).Encode(result)
		},
	}
	cmd.Flags().StringVar(&goalPath, "goal", "-", "path to a JSON-encoded goal, or - for stdin")
	return cmd
}

func readGoal(path string) (apitypes.Goal, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return apitypes.Goal{}, err
		}
		defer f.Close()
		r = f
	}
	var goal apitypes.Goal
	if err := json.NewDecoder(r).Decode(&goal); err != nil {
		return apitypes.Goal{}, fmt.Errorf("decoding goal: %w", err)
	}
	return goal, nil
}

// demoBindings wires every configured worker handler name to a
// pass-through handler that echoes its input, and every phase validator to
// one that always passes — enough to drive the kernel end to end without
// requiring real worker/validator implementations on the command line.
func demoBindings(cfg *config.Config) kernel.Bindings {
	handlers := make(map[string]worker.Handler, len(cfg.Workers))
	for _, w := range cfg.Workers {
		handlers[w.Handler] = echoHandler
	}
	return kernel.Bindings{
		WorkerHandlers:    handlers,
		MemoryStore:       memoryinmem.New(),
		StrategyValidator: alwaysPasses(),
		BuildValidator:    alwaysPasses(),
	}
}

func echoHandler(_ context.Context, input worker.StepInput, _ worker.Runtime) (any, error) {
	return input.Input, nil
}

func alwaysPasses() phase.Validators {
	return phase.ValidatorFunc(func(context.Context, *phase.Run) (apitypes.Verdict, error) {
		return apitypes.Verdict{Passed: true}, nil
	})
}
