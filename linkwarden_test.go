package linkwarden

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckMailtoIsAlwaysOk(t *testing.T) {
	resp, err := Check(context.Background(), "mailto:jane@example.com")
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Kind.String())
}

func TestCheckRejectsInvalidURI(t *testing.T) {
	_, err := Check(context.Background(), "://not a uri")
	assert.Error(t, err)
}
