// Package mpcengine renders the templated MPC programs a party compiles
// and runs, and defines the capability interfaces to the external compiler
// and VM binaries. Both the MPC engine and the statistical computation
// templates it runs are treated as opaque externals; this package only
// owns the substitution and invocation plumbing around them.
package mpcengine

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// skipOnFirstRunMarker tags template lines that must be dropped when a
// party is running its very first sharing session (no prior ShareFile to
// fold into).
const skipOnFirstRunMarker = "// skip on first run"

// SharingParams parameterizes the sharing-program template.
type SharingParams struct {
	SecretIndex      int
	ClientPortBase   int
	MaxDataProviders int
	InputBytes       int
	Delta            []byte
	ZeroEncodings    [][]byte
	FirstRun         bool
}

// QueryParams parameterizes the query-program template.
type QueryParams struct {
	NumDataProviders int
	ClientPortBase   int
}

// RenderSharing substitutes params into the sharing program template,
// stripping any line tagged skipOnFirstRunMarker when this is the party's
// first run.
func RenderSharing(template string, p SharingParams) (string, error) {
	if len(p.Delta) == 0 {
		return "", fmt.Errorf("mpcengine: delta must not be empty")
	}
	replacer := strings.NewReplacer(
		"{{secret_index}}", strconv.Itoa(p.SecretIndex),
		"{{client_port_base}}", strconv.Itoa(p.ClientPortBase),
		"{{max_data_providers}}", strconv.Itoa(p.MaxDataProviders),
		"{{input_bytes}}", strconv.Itoa(p.InputBytes),
		"{{delta}}", hex.EncodeToString(p.Delta),
		"{{zero_encodings}}", encodeList(p.ZeroEncodings),
	)
	rendered := replacer.Replace(template)
	return stripMarkedLines(rendered, p.FirstRun), nil
}

// RenderQuery substitutes params into the query program template. Query
// sessions never mutate the ShareFile, so there is no first-run stripping.
func RenderQuery(template string, p QueryParams) string {
	replacer := strings.NewReplacer(
		"{{num_data_providers}}", strconv.Itoa(p.NumDataProviders),
		"{{client_port_base}}", strconv.Itoa(p.ClientPortBase),
	)
	return replacer.Replace(template)
}

func encodeList(entries [][]byte) string {
	parts := make([]string, len(entries))
	for i, e := range entries {
		parts[i] = hex.EncodeToString(e)
	}
	return strings.Join(parts, ",")
}

// stripMarkedLines removes every line containing skipOnFirstRunMarker when
// firstRun is true; otherwise it returns rendered unchanged.
func stripMarkedLines(rendered string, firstRun bool) string {
	if !firstRun {
		return rendered
	}
	lines := strings.Split(rendered, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.Contains(line, skipOnFirstRunMarker) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
