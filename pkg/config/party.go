package config

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Party holds everything the party binary's serve command needs to
// construct a pkg/party.Engine and its HTTP surface.
type Party struct {
	ListenAddr  string
	APIKey      string
	WebProtocol string

	PartyID          int
	PartyHosts       []string
	DataDir          string
	MaxDataProviders int
	RehashCommand    string

	SharingTemplatePath string
	QueryTemplatePath   string

	CompilerBinary string
	VMBinary       string
	VerifierBinary string

	MetricsAddr string
}

// RegisterPartyFlags adds every flag LoadParty reads, bound to its
// upper-snake environment variable.
func RegisterPartyFlags(cmd *cobra.Command) error {
	cmd.Flags().Int("port", 8090, "port this party's admin HTTP surface listens on")
	cmd.Flags().String("party-api-key", "", "shared API key every admin request must present")
	cmd.Flags().String("party-web-protocol", "http", "http or https, used to reach peer parties")
	cmd.Flags().Int("party-id", 0, "this process's index into --party-hosts")
	cmd.Flags().String("party-hosts", "", "comma-separated party admin hosts (host:port), indexed by party id")
	cmd.Flags().String("party-ports", "", "comma-separated party admin ports, paired positionally with --party-hosts")
	cmd.Flags().String("data-dir", "./data", "directory this party owns exclusively for ShareFile/Backup/Player-Data")
	cmd.Flags().Int("max-data-providers", 1000, "secret_index values at or above this are rejected")
	cmd.Flags().String("rehash-command", "", "optional external command run over Player-Data after installing a client cert")
	cmd.Flags().String("sharing-template-path", "", "path to the sharing program template")
	cmd.Flags().String("query-template-path", "", "path to the query program template")
	cmd.Flags().String("mpc-compiler-binary", "", "external MPC program compiler")
	cmd.Flags().String("mpc-vm-binary", "", "external MPC virtual machine")
	cmd.Flags().String("proof-verifier-binary", "", "external notarization proof verifier")
	cmd.Flags().String("metrics-addr", "", "read into the config but not used by serve; /metrics is always served on the main listener")

	for flagName, envVar := range map[string]string{
		"port":                  "PORT",
		"party-api-key":         "PARTY_API_KEY",
		"party-web-protocol":    "PARTY_WEB_PROTOCOL",
		"party-id":              "PARTY_ID",
		"party-hosts":           "PARTY_HOSTS",
		"party-ports":           "PARTY_PORTS",
		"data-dir":              "DATA_DIR",
		"max-data-providers":    "MAX_DATA_PROVIDERS",
		"rehash-command":        "REHASH_COMMAND",
		"sharing-template-path": "SHARING_TEMPLATE_PATH",
		"query-template-path":   "QUERY_TEMPLATE_PATH",
		"mpc-compiler-binary":   "MPC_COMPILER_BINARY",
		"mpc-vm-binary":         "MPC_VM_BINARY",
		"proof-verifier-binary": "PROOF_VERIFIER_BINARY",
		"metrics-addr":          "METRICS_ADDR",
	} {
		if err := bindEnv(cmd, flagName, envVar); err != nil {
			return err
		}
	}
	return nil
}

// LoadParty reads a Party config from viper, which must already have had
// RegisterPartyFlags applied and cmd.Execute parse flags.
func LoadParty() (Party, error) {
	hosts := splitCSV(viper.GetString("party-hosts"))
	ports := splitCSV(viper.GetString("party-ports"))
	partyHosts, err := zipHostsPorts(hosts, ports)
	if err != nil {
		return Party{}, err
	}
	if len(partyHosts) == 0 {
		return Party{}, fmt.Errorf("config: PARTY_HOSTS must name at least one party")
	}

	apiKey := viper.GetString("party-api-key")
	if apiKey == "" {
		return Party{}, fmt.Errorf("config: PARTY_API_KEY must be set")
	}

	partyID := viper.GetInt("party-id")
	if partyID < 0 || partyID >= len(partyHosts) {
		return Party{}, fmt.Errorf("config: PARTY_ID %d out of range for %d party hosts", partyID, len(partyHosts))
	}

	return Party{
		ListenAddr:          fmt.Sprintf(":%d", viper.GetInt("port")),
		APIKey:              apiKey,
		WebProtocol:         defaultString(viper.GetString("party-web-protocol"), "http"),
		PartyID:             partyID,
		PartyHosts:          partyHosts,
		DataDir:             defaultString(viper.GetString("data-dir"), "./data"),
		MaxDataProviders:    viper.GetInt("max-data-providers"),
		RehashCommand:       viper.GetString("rehash-command"),
		SharingTemplatePath: viper.GetString("sharing-template-path"),
		QueryTemplatePath:   viper.GetString("query-template-path"),
		CompilerBinary:      viper.GetString("mpc-compiler-binary"),
		VMBinary:            viper.GetString("mpc-vm-binary"),
		VerifierBinary:      viper.GetString("proof-verifier-binary"),
		MetricsAddr:         viper.GetString("metrics-addr"),
	}, nil
}
