package config

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Coordinator holds everything the coordinator binary's serve command needs
// to construct a pkg/coordinator.Coordinator and its HTTP surface.
type Coordinator struct {
	ListenAddr       string
	PartyHosts       []string
	PartyAPIKey      string
	PartyWebProtocol string

	FreePortsStart int
	FreePortsEnd   int

	MaxClientID                   int
	UserQueueSize                 int
	UserQueueHeadTimeout          time.Duration
	ProhibitMultipleContributions bool
	PerformCommitmentCheck        bool
	FanoutTimeout                 time.Duration

	ProofDir        string
	SessionStoreDSN string
	VerifierBinary  string
	MetricsAddr     string
}

// RegisterCoordinatorFlags adds every flag LoadCoordinator reads, bound to
// its upper-snake environment variable.
func RegisterCoordinatorFlags(cmd *cobra.Command) error {
	cmd.Flags().Int("port", 8080, "port the coordinator's public HTTP surface listens on")
	cmd.Flags().String("party-hosts", "", "comma-separated party admin hosts (host:port), or bare hosts paired with --party-ports")
	cmd.Flags().String("party-ports", "", "comma-separated party admin ports, paired positionally with --party-hosts")
	cmd.Flags().String("party-api-key", "", "shared API key presented to every party's admin surface")
	cmd.Flags().String("party-web-protocol", "http", "http or https, used to reach parties")
	cmd.Flags().Int("free-ports-start", 10000, "first port in the MPC session port range")
	cmd.Flags().Int("free-ports-end", 11000, "last port in the MPC session port range")
	cmd.Flags().Int("max-client-id", 1_000_000, "client_id values at or above this are rejected")
	cmd.Flags().Int("user-queue-size", 1000, "maximum number of concurrently queued access keys")
	cmd.Flags().Int("user-queue-head-timeout-seconds", 60, "seconds a head position is held before it is evicted")
	cmd.Flags().Bool("prohibit-multiple-contributions", true, "reject a sharing session whose notarized uid has already been recorded")
	cmd.Flags().Bool("perform-commitment-check", true, "cross-check every party's commitment against the verifier's proof hash")
	cmd.Flags().Int("fanout-timeout-seconds", 30, "per-party timeout for a sharing or query fanout call")
	cmd.Flags().String("proof-dir", "tlsn_proofs", "directory accepted proofs are persisted to")
	cmd.Flags().String("session-store-dsn", "file:sessions.db", "sqlite DSN for the session metadata store")
	cmd.Flags().String("proof-verifier-binary", "", "external notarization proof verifier")
	cmd.Flags().String("metrics-addr", "", "read into the config but not used by serve; /metrics is always served on the main listener")

	for flagName, envVar := range map[string]string{
		"port":                            "PORT",
		"party-hosts":                     "PARTY_HOSTS",
		"party-ports":                     "PARTY_PORTS",
		"party-api-key":                   "PARTY_API_KEY",
		"party-web-protocol":              "PARTY_WEB_PROTOCOL",
		"free-ports-start":                "FREE_PORTS_START",
		"free-ports-end":                  "FREE_PORTS_END",
		"max-client-id":                   "MAX_CLIENT_ID",
		"user-queue-size":                 "USER_QUEUE_SIZE",
		"user-queue-head-timeout-seconds": "USER_QUEUE_HEAD_TIMEOUT",
		"prohibit-multiple-contributions": "PROHIBIT_MULTIPLE_CONTRIBUTIONS",
		"perform-commitment-check":        "PERFORM_COMMITMENT_CHECK",
		"fanout-timeout-seconds":          "FANOUT_TIMEOUT_SECONDS",
		"proof-dir":                       "TLSN_PROOF_DIR",
		"session-store-dsn":               "SESSION_STORE_DSN",
		"proof-verifier-binary":           "PROOF_VERIFIER_BINARY",
		"metrics-addr":                    "METRICS_ADDR",
	} {
		if err := bindEnv(cmd, flagName, envVar); err != nil {
			return err
		}
	}
	return nil
}

// LoadCoordinator reads a Coordinator config from viper, which must already
// have had RegisterCoordinatorFlags applied and cmd.Execute parse flags.
func LoadCoordinator() (Coordinator, error) {
	hosts := splitCSV(viper.GetString("party-hosts"))
	ports := splitCSV(viper.GetString("party-ports"))
	partyHosts, err := zipHostsPorts(hosts, ports)
	if err != nil {
		return Coordinator{}, err
	}
	if len(partyHosts) == 0 {
		return Coordinator{}, fmt.Errorf("config: PARTY_HOSTS must name at least one party")
	}

	apiKey := viper.GetString("party-api-key")
	if apiKey == "" {
		return Coordinator{}, fmt.Errorf("config: PARTY_API_KEY must be set")
	}

	return Coordinator{
		ListenAddr:                    fmt.Sprintf(":%d", viper.GetInt("port")),
		PartyHosts:                    partyHosts,
		PartyAPIKey:                   apiKey,
		PartyWebProtocol:              defaultString(viper.GetString("party-web-protocol"), "http"),
		FreePortsStart:                viper.GetInt("free-ports-start"),
		FreePortsEnd:                  viper.GetInt("free-ports-end"),
		MaxClientID:                   viper.GetInt("max-client-id"),
		UserQueueSize:                 viper.GetInt("user-queue-size"),
		UserQueueHeadTimeout:          time.Duration(viper.GetInt("user-queue-head-timeout-seconds")) * time.Second,
		ProhibitMultipleContributions: viper.GetBool("prohibit-multiple-contributions"),
		PerformCommitmentCheck:        viper.GetBool("perform-commitment-check"),
		FanoutTimeout:                 time.Duration(viper.GetInt("fanout-timeout-seconds")) * time.Second,
		ProofDir:                      defaultString(viper.GetString("proof-dir"), "tlsn_proofs"),
		SessionStoreDSN:               defaultString(viper.GetString("session-store-dsn"), "file:sessions.db"),
		VerifierBinary:                viper.GetString("proof-verifier-binary"),
		MetricsAddr:                   viper.GetString("metrics-addr"),
	}, nil
}
