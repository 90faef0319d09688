package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenIssuer(t *testing.T) {
	issuer := NewTokenIssuer(testSecret)

	first, err := issuer.Issue("R")
	require.NoError(t, err)
	second, err := issuer.Issue("R")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.NoError(t, issuer.Verify(first, "R"))

	assert.Error(t, issuer.Verify(first, "OTHER"))
	assert.Error(t, issuer.Verify("not-a-token", "R"))
	assert.Error(t, NewTokenIssuer("another-secret").Verify(first, "R"))
}
