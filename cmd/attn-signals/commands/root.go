package commands

import (
	"attn-signals/internal/config"
	"attn-signals/internal/logging"
	"attn-signals/internal/mcp"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	// Version, Commit, and BuildDate are set at build time via ldflags.
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"

	verbose    bool
	policyPath string
	cfg        *config.AppConfig
	policy     *config.Policy
)

var rootCmd = &cobra.Command{
	Use:   "attn-signals",
	Short: "attn-signals derives attendance risk signals from period-level punches",
	Long: `Classifies period attendance punches (cutting, late to school, attendance errors),
aggregates them by week, fits recency-weighted trends, assigns MTSS tiers per cohort
and picks one most-improved student per course section.

Without a subcommand it runs the MCP tool server over stdio.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.Init(verbose)

		var err error
		cfg, err = config.Load()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load configuration")
		}

		if policyPath == "" {
			policyPath = cfg.PolicyFile
		}
		policy, err = config.LoadPolicy(policyPath)
		if err != nil {
			return err
		}

		log.Info().
			Str("version", Version).
			Str("commit", Commit).
			Str("buildDate", BuildDate).
			Str("policy", policyPath).
			Msg("attn-signals starting")
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.SilenceUsage = true
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&policyPath, "policy", "", "YAML policy file (defaults to $"+config.PolicyFileEnv+")")
}

func serve(cmd *cobra.Command) error {
	server := mcp.NewServer(cfg, *policy, Version)
	return server.Serve(cmd.Context())
}
