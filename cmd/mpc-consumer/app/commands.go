// Package app provides the entry point for the mpc-consumer command-line
// application.
package app

import (
	"fmt"
	"net/http"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/exfinen/mpc-cluster/pkg/config"
	"github.com/exfinen/mpc-cluster/pkg/consumercache"
	"github.com/exfinen/mpc-cluster/pkg/httpapi"
	"github.com/exfinen/mpc-cluster/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:               "mpc-consumer",
	DisableAutoGenTag: true,
	Short:             "Cached aggregate-statistic surface for data consumers",
	Run: func(cmd *cobra.Command, _ []string) {
		if err := cmd.Help(); err != nil {
			logger.Errorf("Error displaying help: %v", err)
		}
	},
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.Initialize()
	},
}

// NewRootCmd creates a new root command for the mpc-consumer CLI.
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
		Short: "Start the consumer's public HTTP surface",
		RunE:  runServe,
	}
	if err := config.RegisterConsumerFlags(cmd); err != nil {
		logger.Errorf("Error registering consumer flags: %v", err)
	}
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := config.LoadConsumer()
	if err != nil {
		return fmt.Errorf("loading consumer config: %w", err)
	}

	store, err := newStore(cfg)
	if err != nil {
		return err
	}

	var clientCert []byte
	if cfg.ClientCertFile != "" {
		clientCert, err = os.ReadFile(cfg.ClientCertFile)
		if err != nil {
			return fmt.Errorf("reading client certificate: %w", err)
		}
	}

	runner := &consumercache.CoordinatorRunner{
		Coordinator: &consumercache.HTTPCoordinatorClient{
			Client:  &http.Client{},
			BaseURL: cfg.CoordinatorAddr,
		},
		MPC:            &consumercache.ExecMPCClient{BinaryPath: cfg.MPCClientBinary},
		AccessKey:      cfg.AccessKey,
		ClientID:       cfg.ClientID,
		ClientCertFile: clientCert,
	}

	cache := consumercache.New(store, runner, cfg.CacheTTL)

	logger.Infof("consumer listening on %s, refreshing every %s", cfg.ListenAddr, cfg.CacheTTL)
	return httpapi.Serve(ctx, cfg.ListenAddr, httpapi.ConsumerRouter(cache))
}

func newStore(cfg config.Consumer) (consumercache.Store, error) {
	switch cfg.CacheBackend {
	case "", "memory":
		return consumercache.NewMemoryStore(), nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return consumercache.NewRedisStore(client, cfg.RedisCacheKey), nil
	default:
		return nil, fmt.Errorf("config: unknown CONSUMER_CACHE_BACKEND %q", cfg.CacheBackend)
	}
}
