// Package cli implements the smooshr command line client.
package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"smooshr/backend/internal/client"
	"smooshr/backend/internal/config"
	"smooshr/backend/internal/logging"
)

// saveTimeout bounds each autosave request made by editing commands.
const saveTimeout = 30 * time.Second

// app carries the state built by the root command for its subcommands.
type app struct {
	flagConfig    string
	flagServer    string
	flagAPIKey    string
	flagToken     string
	flagOutput    string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	cfg    *config.Config
	logger *logging.Logger
	client *client.Client
}

// NewRootCmd creates the root cobra command for the smooshr CLI.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "smooshr",
		Short: "Smooshr manages CSV validation workflows",
		Long:  "smooshr edits validation workflows on a Smooshr server and test-runs them against local CSV files.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&a.flagConfig, "config", "", "Path to config file")
	root.PersistentFlags().StringVar(&a.flagServer, "server", "", "API base URL (overrides client.base_url)")
	root.PersistentFlags().StringVar(&a.flagAPIKey, "api-key", "", "API key (overrides client.api_key)")
	root.PersistentFlags().StringVar(&a.flagToken, "token", "", "Bearer token (overrides client.token)")
	root.PersistentFlags().StringVarP(&a.flagOutput, "output", "o", "table", "Output format (table, json, yaml)")
	root.PersistentFlags().BoolVar(&a.flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&a.flagLogLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&a.flagLogFormat, "log-format", "console", "Log format (console, json)")

	root.AddCommand(
		newWhoamiCmd(a),
		newWorkflowsCmd(a),
		newOpsCmd(a),
		newFieldsetsCmd(a),
		newParamsCmd(a),
		newRunCmd(a),
		newKeysCmd(a),
	)

	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	switch a.flagOutput {
	case outputTable, outputJSON, outputYAML:
	default:
		return fmt.Errorf("unknown output format %q", a.flagOutput)
	}

	cfg, err := config.LoadConfig(a.flagConfig)
	if err != nil {
		return err
	}
	if a.flagServer != "" {
		cfg.Client.BaseURL = a.flagServer
	}
	if a.flagAPIKey != "" {
		cfg.Client.APIKey = a.flagAPIKey
	}
	if a.flagToken != "" {
		cfg.Client.Token = a.flagToken
	}
	a.cfg = cfg

	if a.flagDebug {
		a.flagLogLevel = "debug"
	}
	a.logger = logging.NewLogger(logging.Options{Level: a.flagLogLevel, Format: a.flagLogFormat})

	c, err := client.New(client.Options{
		BaseURL: cfg.Client.BaseURL,
		Tokens:  client.TokenSourceFromConfig(cmd.Context(), cfg),
		APIKey:  cfg.Client.APIKey,
		Logger:  a.logger,
	})
	if err != nil {
		return err
	}
	a.client = c
	return nil
}
