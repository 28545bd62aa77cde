package config

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Consumer holds everything the consumer binary's serve command needs to
// construct a pkg/consumercache.Cache and its HTTP surface.
type Consumer struct {
	ListenAddr string

	CoordinatorAddr string
	AccessKey       string
	ClientID        int
	ClientCertFile  string
	MPCClientBinary string

	CacheTTL      time.Duration
	CacheBackend  string
	RedisAddr     string
	RedisCacheKey string

	MetricsAddr string
}

// RegisterConsumerFlags adds every flag LoadConsumer reads, bound to its
// upper-snake environment variable.
func RegisterConsumerFlags(cmd *cobra.Command) error {
	cmd.Flags().Int("port", 8070, "port the consumer's public HTTP surface listens on")
	cmd.Flags().String("coordinator-addr", "", "base URL of the coordinator's public HTTP surface")
	cmd.Flags().String("consumer-access-key", "", "standing access key the refresher admits into the priority queue")
	cmd.Flags().Int("consumer-client-id", 0, "client_id the refresher presents on every query session")
	cmd.Flags().String("consumer-client-cert-file", "", "path to the client certificate the refresher presents to parties")
	cmd.Flags().String("mpc-client-binary", "", "external binary that fetches the aggregate over the client<->party wire protocol")
	cmd.Flags().Int("cache-ttl-seconds", 60, "how often the cached aggregate is refreshed")
	cmd.Flags().String("consumer-cache-backend", "memory", "memory or redis")
	cmd.Flags().String("consumer-cache-redis-addr", "", "redis address, required when --consumer-cache-backend=redis")
	cmd.Flags().String("metrics-addr", "", "read into the config but not used by serve; /metrics is always served on the main listener")

	for flagName, envVar := range map[string]string{
		"port":                      "PORT",
		"coordinator-addr":          "COORDINATOR_ADDR",
		"consumer-access-key":       "CONSUMER_ACCESS_KEY",
		"consumer-client-id":        "CONSUMER_CLIENT_ID",
		"consumer-client-cert-file": "CONSUMER_CLIENT_CERT_FILE",
		"mpc-client-binary":         "MPC_CLIENT_BINARY",
		"cache-ttl-seconds":         "CACHE_TTL_SECONDS",
		"consumer-cache-backend":    "CONSUMER_CACHE_BACKEND",
		"consumer-cache-redis-addr": "CONSUMER_CACHE_REDIS_ADDR",
		"metrics-addr":              "METRICS_ADDR",
	} {
		if err := bindEnv(cmd, flagName, envVar); err != nil {
			return err
		}
	}
	return nil
}

// LoadConsumer reads a Consumer config from viper, which must already have
// had RegisterConsumerFlags applied and cmd.Execute parse flags.
func LoadConsumer() (Consumer, error) {
	coordinatorAddr := viper.GetString("coordinator-addr")
	if coordinatorAddr == "" {
		return Consumer{}, fmt.Errorf("config: COORDINATOR_ADDR must be set")
	}
	accessKey := viper.GetString("consumer-access-key")
	if accessKey == "" {
		return Consumer{}, fmt.Errorf("config: CONSUMER_ACCESS_KEY must be set")
	}

	backend := defaultString(viper.GetString("consumer-cache-backend"), "memory")
	if backend == "redis" && viper.GetString("consumer-cache-redis-addr") == "" {
		return Consumer{}, fmt.Errorf("config: CONSUMER_CACHE_REDIS_ADDR must be set when CONSUMER_CACHE_BACKEND=redis")
	}

	return Consumer{
		ListenAddr:      fmt.Sprintf(":%d", viper.GetInt("port")),
		CoordinatorAddr: coordinatorAddr,
		AccessKey:       accessKey,
		ClientID:        viper.GetInt("consumer-client-id"),
		ClientCertFile:  viper.GetString("consumer-client-cert-file"),
		MPCClientBinary: viper.GetString("mpc-client-binary"),
		CacheTTL:        time.Duration(viper.GetInt("cache-ttl-seconds")) * time.Second,
		CacheBackend:    backend,
		RedisAddr:       viper.GetString("consumer-cache-redis-addr"),
		RedisCacheKey:   "mpc-cluster:aggregate",
		MetricsAddr:     viper.GetString("metrics-addr"),
	}, nil
}
