// Package app provides the entry point for the mpc-party command-line
// application.
package app

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/exfinen/mpc-cluster/pkg/config"
	"github.com/exfinen/mpc-cluster/pkg/httpapi"
	"github.com/exfinen/mpc-cluster/pkg/logger"
	"github.com/exfinen/mpc-cluster/pkg/mpcengine"
	"github.com/exfinen/mpc-cluster/pkg/party"
	"github.com/exfinen/mpc-cluster/pkg/proof"
)

var rootCmd = &cobra.Command{
	Use:               "mpc-party",
	DisableAutoGenTag: true,
	Short:             "Per-party MPC worker: sharing, query, and peer certificate exchange",
	Run: func(cmd *cobra.Command, _ []string) {
		if err := cmd.Help(); err != nil {
			logger.Errorf("Error displaying help: %v", err)
		}
	},
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.Initialize()
	},
}

// NewRootCmd creates a new root command for the mpc-party CLI.
func NewRootCmd() *cobra.Command {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug mode")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		logger.Errorf("Error binding debug flag: %v", err)
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.SilenceUsage = true
	return rootCmd
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start this party's admin HTTP surface",
		RunE:  runServe,
	}
	if err := config.RegisterPartyFlags(cmd); err != nil {
		logger.Errorf("Error registering party flags: %v", err)
	}
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := config.LoadParty()
	if err != nil {
		return fmt.Errorf("loading party config: %w", err)
	}

	sharingTemplate, err := readTemplate(cfg.SharingTemplatePath)
	if err != nil {
		return fmt.Errorf("reading sharing template: %w", err)
	}
	queryTemplate, err := readTemplate(cfg.QueryTemplatePath)
	if err != nil {
		return fmt.Errorf("reading query template: %w", err)
	}

	engine := party.New(
		party.Config{
			PartyID:          cfg.PartyID,
			DataDir:          cfg.DataDir,
			MaxDataProviders: cfg.MaxDataProviders,
			SharingTemplate:  sharingTemplate,
			QueryTemplate:    queryTemplate,
			PartyHosts:       cfg.PartyHosts,
			RehashCommand:    cfg.RehashCommand,
		},
		proof.NewExecVerifier(cfg.VerifierBinary),
		&mpcengine.ExecCompiler{BinaryPath: cfg.CompilerBinary},
		&mpcengine.ExecVM{BinaryPath: cfg.VMBinary},
		&party.PeerCertFetcher{
			Client:      &http.Client{},
			WebProtocol: cfg.WebProtocol,
			APIKey:      cfg.APIKey,
			MaxElapsed:  30 * time.Second,
		},
	)

	logger.Infof("party %d listening on %s", cfg.PartyID, cfg.ListenAddr)
	return httpapi.Serve(ctx, cfg.ListenAddr, httpapi.PartyRouter(engine, cfg.APIKey))
}

func readTemplate(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(content), nil
}
