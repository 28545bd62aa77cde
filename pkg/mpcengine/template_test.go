package mpcengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sharingTemplate = `program.party_players({{max_data_providers}})
secret_index = {{secret_index}}
client_port_base = {{client_port_base}}
input_bytes = {{input_bytes}}
delta = {{delta}}
zero_encodings = {{zero_encodings}}
fold_into_running_total() // skip on first run
`

func TestRenderSharingSubstitutesFields(t *testing.T) {
	out, err := RenderSharing(sharingTemplate, SharingParams{
		SecretIndex:      2,
		ClientPortBase:   15000,
		MaxDataProviders: 10,
		InputBytes:       4,
		Delta:            []byte{0x01, 0x02},
		ZeroEncodings:    [][]byte{{0xAA}, {0xBB}},
		FirstRun:         false,
	})
	require.NoError(t, err)
	assert.Contains(t, out, "secret_index = 2")
	assert.Contains(t, out, "client_port_base = 15000")
	assert.Contains(t, out, "delta = 0102")
	assert.Contains(t, out, "zero_encodings = aa,bb")
	assert.Contains(t, out, "fold_into_running_total()")
}

func TestRenderSharingStripsFirstRunLines(t *testing.T) {
	out, err := RenderSharing(sharingTemplate, SharingParams{
		Delta:    []byte{0x01},
		FirstRun: true,
	})
	require.NoError(t, err)
	assert.NotContains(t, out, "fold_into_running_total")
}

func TestRenderSharingRejectsEmptyDelta(t *testing.T) {
	_, err := RenderSharing(sharingTemplate, SharingParams{})
	assert.Error(t, err)
}

func TestRenderQuerySubstitutesFields(t *testing.T) {
	out := RenderQuery("providers={{num_data_providers}} port={{client_port_base}}", QueryParams{
		NumDataProviders: 5,
		ClientPortBase:   16000,
	})
	assert.Equal(t, "providers=5 port=16000", out)
}

func TestParseCommitment(t *testing.T) {
	stdout := "some noise\nReg[3] = 0xdeadbeef\nmore noise\n"
	got, err := ParseCommitment(stdout)
	require.NoError(t, err)
	assert.Equal(t, "deadbeef", got)
}

func TestParseCommitmentMissing(t *testing.T) {
	_, err := ParseCommitment("no registers dumped here")
	assert.Error(t, err)
}

func TestParseCommitmentNormalizesCase(t *testing.T) {
	got, err := ParseCommitment("Reg[0] = 0xDEADBEEF\n")
	require.NoError(t, err)
	assert.Equal(t, "deadbeef", got)
}
