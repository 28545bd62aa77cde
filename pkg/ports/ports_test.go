package ports

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSharingPairIsFixed(t *testing.T) {
	a, err := New(10000, 10100, 5)
	require.NoError(t, err)

	p1 := a.SharingPair()
	p2 := a.SharingPair()
	assert.Equal(t, p1, p2)
	assert.Equal(t, Pair{ServerBase: 10000, ClientBase: 10005}, p1)
}

func TestQueryPortRotation(t *testing.T) {
	a, err := New(10000, 10000+4*5+2*5, 5) // exactly two query windows available
	require.NoError(t, err)

	first := a.NextQueryPair()
	assert.Equal(t, Pair{ServerBase: 10010, ClientBase: 10015}, first)

	second := a.NextQueryPair()
	assert.Equal(t, Pair{ServerBase: 10020, ClientBase: 10025}, second)

	// Next window would exceed end, so it wraps back to start+2n.
	third := a.NextQueryPair()
	assert.Equal(t, first, third)
}

func TestNewRejectsUndersizedRange(t *testing.T) {
	_, err := New(10000, 10010, 5)
	assert.Error(t, err)
}

func TestNewRejectsNonPositiveWindow(t *testing.T) {
	_, err := New(10000, 10100, 0)
	assert.Error(t, err)
}
