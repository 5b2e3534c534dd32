// Package cli implements the specflow command line.
package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	specflow "github.com/sansecao/spec-workflow-mcp-pro"
)

type app struct {
	configFile  string
	projectPath string
	logLevel    string
	output      string
	config      *specflow.Config
}

// service opens the project configured for this invocation.
func (a *app) service() (*specflow.Service, error) {
	options := []specflow.Option{
		specflow.WithConfig(a.config),
		specflow.WithLogger(slog.Default()),
	}
	if a.config.Tracing.Enabled {
		options = append(options, specflow.WithTracing(a.config.Tracing.ServiceName, Version, a.config.Tracing.OutputFile))
	}
	return specflow.New(options...)
}

func (a *app) load(cmd *cobra.Command, args []string) error {
	switch cmd.Name() {
	case "init", "version":
		a.config = specflow.DefaultConfig()
		return configureLogger(a.config.Log, a.logLevel, cmd.ErrOrStderr())
	}
	cfg, err := loadConfig(a.configFile, a.projectPath)
	if err != nil {
		return err
	}
	a.config = cfg
	return configureLogger(cfg.Log, a.logLevel, cmd.ErrOrStderr())
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:               "specflow",
		Short:             "Specflow - human-in-the-loop approvals for spec documents",
		Long:              `Specflow records approval requests for spec documents, snapshots every revision and serves a realtime review dashboard.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.load,
	}

	cmd.PersistentFlags().StringVar(&a.configFile, "config", "", "Config file (default <project>/"+ConfigFileName+")")
	cmd.PersistentFlags().StringVarP(&a.projectPath, "project", "p", "", "Project directory")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Override log level (debug|info|warn|error)")
	cmd.PersistentFlags().StringVarP(&a.output, "output", "o", formatText, "Output format (text|json|yaml)")

	cmd.AddCommand(
		newServeCmd(a),
		newApprovalCmd(a),
		newSnapshotCmd(a),
		newDiffCmd(a),
		newConfigCmd(a),
		NewVersionCmd(),
	)
	return cmd
}
