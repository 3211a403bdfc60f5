package credential

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestStore_RoundTrip(t *testing.T) {
	keyring.MockInit()
	s := NewStore()

	key, err := s.APIKey("https://aq.internal")
	require.NoError(t, err)
	assert.Empty(t, key)

	require.NoError(t, s.SetAPIKey("https://aq.internal/", "k-123"))
	key, err = s.APIKey("https://aq.internal")
	require.NoError(t, err)
	assert.Equal(t, "k-123", key)

	other, err := s.APIKey("https://other.internal")
	require.NoError(t, err)
	assert.Empty(t, other)

	require.NoError(t, s.SetAPIKey("https://aq.internal", ""))
	key, err = s.APIKey("https://aq.internal")
	require.NoError(t, err)
	assert.Empty(t, key)

	assert.NoError(t, s.DeleteAPIKey("https://aq.internal"))
}
