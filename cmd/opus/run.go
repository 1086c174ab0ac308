// Copyright Contributors to the Opus project

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/go-logr/zapr"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/nicc777/opus/internal/manifest"
	"github.com/nicc777/opus/pkg/kvstore"
	"github.com/nicc777/opus/pkg/logging"
	"github.com/nicc777/opus/pkg/orchestrator"
	"github.com/nicc777/opus/pkg/schedule"
	"github.com/nicc777/opus/pkg/selector"
	"github.com/nicc777/opus/pkg/state"
	"github.com/nicc777/opus/pkg/task"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Load task manifests and process them",
	Long: `Load task manifests from YAML files, register the built-in HelloWorld
processor and process every qualifying task for the given command and
environment.

Flags can also be provided through the environment with the OPUS_ prefix,
for example OPUS_COMMAND=apply OPUS_ENVIRONMENT=dev.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringSlice("manifest", nil, "Manifest file to load (repeatable)")
	runCmd.Flags().String("command", "apply", "Processing command")
	runCmd.Flags().String("environment", "default", "Processing environment")
	runCmd.Flags().String("selector", "", "CEL expression selecting tasks to register")
	runCmd.Flags().String("state-file", "", "Path of the JSON state persistence file (in-memory when empty)")
	runCmd.Flags().String("schedule", "", "Cron spec for recurring processing (run once when empty)")
	runCmd.Flags().Bool("debug", false, "Enable debug logging")

	viper.SetEnvPrefix("OPUS")
	viper.AutomaticEnv()
	_ = viper.BindPFlags(runCmd.Flags())

	rootCmd.AddCommand(runCmd)
}

func runRun(_ *cobra.Command, _ []string) error {
	log, err := buildLogger(viper.GetBool("debug"))
	if err != nil {
		return err
	}

	paths := viper.GetStringSlice("manifest")
	if len(paths) == 0 {
		return fmt.Errorf("at least one --manifest file is required")
	}
	manifests, err := manifest.LoadAll(paths)
	if err != nil {
		return err
	}

	persistence, err := buildPersistence(viper.GetString("state-file"), log)
	if err != nil {
		return err
	}

	orch := orchestrator.New(
		orchestrator.WithLogger(log),
		orchestrator.WithStatePersistence(persistence),
	)
	orch.RegisterTaskProcessor(&helloWorldProcessor{log: log})

	expression := viper.GetString("selector")
	if err := selector.ValidateExpression(expression); err != nil {
		return err
	}
	filter := selector.New()
	for _, m := range manifests {
		tk, err := m.ToTask(log)
		if err != nil {
			return err
		}
		matched, err := filter.Matches(expression, tk)
		if err != nil {
			return err
		}
		if !matched {
			log.Info(fmt.Sprintf("task %q filtered out by selector", tk.ID()))
			continue
		}
		if err := orch.AddTask(tk); err != nil {
			return err
		}
	}

	command := viper.GetString("command")
	environment := viper.GetString("environment")
	cronSpec := viper.GetString("schedule")
	if cronSpec == "" {
		return orch.ProcessContext(command, environment)
	}

	scheduler := schedule.New(log)
	if _, err := scheduler.AddRun(cronSpec, orch, command, environment); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	scheduler.Start(ctx)
	return nil
}

func buildLogger(debug bool) (logging.Logger, error) {
	var (
		zapLog *zap.Logger
		err    error
	)
	if debug {
		zapLog, err = zap.NewDevelopment()
	} else {
		zapLog, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	return logging.New(zapr.NewLogger(zapLog)), nil
}

func buildPersistence(path string, log logging.Logger) (state.Persistence, error) {
	if path == "" {
		return state.NewInMemory(log), nil
	}
	return state.NewFile(path, log)
}

// helloWorldProcessor is the built-in demo processor: it writes
// "Hello World!" to the file named in spec.file, or a temp file when the
// spec names none.
type helloWorldProcessor struct {
	log logging.Logger
}

func (p *helloWorldProcessor) Kind() string                { return "HelloWorld" }
func (p *helloWorldProcessor) Versions() []string          { return []string{"v1"} }
func (p *helloWorldProcessor) SupportedCommands() []string { return []string{"apply"} }

func (p *helloWorldProcessor) ProcessTask(tk *task.Task, _, _ string, kv *kvstore.KeyValueStore, _ state.Persistence) (*kvstore.KeyValueStore, error) {
	outputFile := filepath.Join(os.TempDir(), fmt.Sprintf("opus-%s.txt", tk.ID()))
	if file, ok := tk.Spec()["file"].(string); ok && file != "" {
		outputFile = file
	}
	if err := os.WriteFile(outputFile, []byte("Hello World!"), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write %q: %w", outputFile, err)
	}
	p.log.Info(fmt.Sprintf("task %q wrote %q", tk.ID(), outputFile))
	kv.Save(fmt.Sprintf("HELLO_WORLD_OUTPUT:%s", tk.ID()), outputFile)
	return kv, nil
}
