// Package config translates process environment variables into the typed
// configuration each binary's serve command needs. Flags are registered on
// the cobra command the way cmd/vmcp/app/commands.go registers them, then
// bound to their upper-snake environment variable through viper; Load*
// reads the bound values back out once cobra has parsed flags.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// bindEnv ties flagName on cmd to envVar, preferring a flag value the
// caller passed explicitly over the environment, and the environment over
// the flag's default.
func bindEnv(cmd *cobra.Command, flagName, envVar string) error {
	flag := cmd.Flags().Lookup(flagName)
	if flag == nil {
		return fmt.Errorf("config: no flag named %q registered on %q", flagName, cmd.Name())
	}
	if err := viper.BindPFlag(flagName, flag); err != nil {
		return fmt.Errorf("config: binding flag %q: %w", flagName, err)
	}
	if err := viper.BindEnv(flagName, envVar); err != nil {
		return fmt.Errorf("config: binding env var %q: %w", envVar, err)
	}
	return nil
}

func splitCSV(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// zipHostsPorts pairs each host with its corresponding port, for deployments
// that configure PARTY_HOSTS as bare hostnames and PARTY_PORTS as a
// parallel list of ports. Hosts that already carry a port (host:port) are
// left untouched. If PARTY_PORTS is empty, PARTY_HOSTS is returned as-is.
func zipHostsPorts(hosts, ports []string) ([]string, error) {
	if len(ports) == 0 {
		return hosts, nil
	}
	if len(ports) != len(hosts) {
		return nil, fmt.Errorf("config: PARTY_HOSTS has %d entries but PARTY_PORTS has %d", len(hosts), len(ports))
	}
	out := make([]string, len(hosts))
	for i, host := range hosts {
		if strings.Contains(host, ":") {
			out[i] = host
			continue
		}
		out[i] = host + ":" + ports[i]
	}
	return out, nil
}

func defaultString(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
