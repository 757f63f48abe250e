package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuzzyMatchInsensitive(t *testing.T) {
	table := map[string]string{"Front Yard": "X"}

	id, matched, ok := FuzzyMatch("front-yard", table)
	require.True(t, ok)
	assert.Equal(t, "X", id)
	assert.Equal(t, "Front Yard", matched)

	id, _, ok = FuzzyMatch("FRONT_YARD", table)
	require.True(t, ok)
	assert.Equal(t, "X", id)
}

func TestFuzzyMatchContainmentBothWays(t *testing.T) {
	table := map[string]string{"Front Yard": "X"}

	// Requested name is a fragment of the registered name.
	id, _, ok := FuzzyMatch("Front", table)
	require.True(t, ok)
	assert.Equal(t, "X", id)

	// Registered name is a fragment of the requested name.
	id, _, ok = FuzzyMatch("front yard speakers", table)
	require.True(t, ok)
	assert.Equal(t, "X", id)
}

func TestFuzzyMatchNoMatch(t *testing.T) {
	table := map[string]string{"Living Room": "A", "Kitchen": "B"}

	_, _, ok := FuzzyMatch("Garage", table)
	assert.False(t, ok)

	_, _, ok = FuzzyMatch("", table)
	assert.False(t, ok)
}

func TestFuzzyMatchDeterministicOrder(t *testing.T) {
	table := map[string]string{
		"Bedroom One": "1",
		"Bedroom Two": "2",
	}

	// Both candidates contain "bedroom"; sorted key order makes the
	// resolution stable across runs.
	for i := 0; i < 10; i++ {
		id, matched, ok := FuzzyMatch("bedroom", table)
		require.True(t, ok)
		assert.Equal(t, "1", id)
		assert.Equal(t, "Bedroom One", matched)
	}
}

func TestExtractSonosID(t *testing.T) {
	assert.Equal(t, "RINCON_ABC123", ExtractSonosID("x-rincon:RINCON_ABC123"))
	assert.Equal(t, "RINCON_949F3EC2E15E01400", ExtractSonosID("RINCON_949F3EC2E15E01400:3647303738"))
	assert.Equal(t, "group-7", ExtractSonosID("group-7"))
}

func TestExtractUPnPID(t *testing.T) {
	assert.Equal(t, "uuid:5f9ec1b3-ed59-1900", ExtractUPnPID("upnp://uuid:5f9ec1b3-ed59-1900/renderer"))
	assert.Equal(t, "plain-id", ExtractUPnPID("plain-id"))
}

func TestExtractBluetoothID(t *testing.T) {
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", ExtractBluetoothID("bt device AA:BB:CC:DD:EE:FF paired"))
	assert.Equal(t, "Headphones", ExtractBluetoothID("Headphones"))
}

func TestComposeRoonID(t *testing.T) {
	assert.Equal(t, "core1:out1", ComposeRoonID("core1", "out1"))
	// Already composed IDs pass through.
	assert.Equal(t, "core2:out9", ComposeRoonID("core1", "core2:out9"))
}
