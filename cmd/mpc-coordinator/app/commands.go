// Package app provides the entry point for the mpc-coordinator command-line
// application.
package app

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/exfinen/mpc-cluster/pkg/config"
	"github.com/exfinen/mpc-cluster/pkg/coordinator"
	"github.com/exfinen/mpc-cluster/pkg/httpapi"
	"github.com/exfinen/mpc-cluster/pkg/logger"
	"github.com/exfinen/mpc-cluster/pkg/ports"
	"github.com/exfinen/mpc-cluster/pkg/proof"
	"github.com/exfinen/mpc-cluster/pkg/queue"
	"github.com/exfinen/mpc-cluster/pkg/sessionstore"
)

var rootCmd = &cobra.Command{
	Use:               "mpc-coordinator",
	DisableAutoGenTag: true,
	Short:             "Admission queue and sharing/query orchestrator for the MPC cluster",
	Run: func(cmd *cobra.Command, _ []string) {
		if err := cmd.Help(); err != nil {
			logger.Errorf("Error displaying help: %v", err)
		}
	},
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.Initialize()
	},
}

// NewRootCmd creates a new root command for the mpc-coordinator CLI.
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
		Short: "Start the coordinator's HTTP surface",
		RunE:  runServe,
	}
	if err := config.RegisterCoordinatorFlags(cmd); err != nil {
		logger.Errorf("Error registering coordinator flags: %v", err)
	}
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := config.LoadCoordinator()
	if err != nil {
		return fmt.Errorf("loading coordinator config: %w", err)
	}

	store, err := sessionstore.Open(ctx, cfg.SessionStoreDSN, cfg.ProhibitMultipleContributions)
	if err != nil {
		return fmt.Errorf("opening session store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Errorf("closing session store: %v", err)
		}
	}()

	portAlloc, err := ports.New(cfg.FreePortsStart, cfg.FreePortsEnd, len(cfg.PartyHosts))
	if err != nil {
		return fmt.Errorf("constructing port allocator: %w", err)
	}

	coord := coordinator.New(
		coordinator.Config{
			PartyHosts:             cfg.PartyHosts,
			MaxClientID:            cfg.MaxClientID,
			PerformCommitmentCheck: cfg.PerformCommitmentCheck,
			FanoutTimeout:          cfg.FanoutTimeout,
			ProofDir:               cfg.ProofDir,
		},
		queue.New(cfg.UserQueueSize, cfg.UserQueueHeadTimeout),
		portAlloc,
		store,
		proof.NewExecVerifier(cfg.VerifierBinary),
		&coordinator.HTTPPartyClient{
			Client:      &http.Client{},
			WebProtocol: cfg.PartyWebProtocol,
			APIKey:      cfg.PartyAPIKey,
			MaxElapsed:  cfg.FanoutTimeout,
		},
	)

	logger.Infof("coordinator listening on %s, fanning out to %d parties", cfg.ListenAddr, len(cfg.PartyHosts))
	return httpapi.Serve(ctx, cfg.ListenAddr, httpapi.CoordinatorRouter(coord))
}
