package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryLifecycle(t *testing.T) {
	r := NewRegistry()

	_, err := r.Active()
	require.ErrorIs(t, err, ErrNoActiveVersion)

	require.NoError(t, r.Register(MustNew(1, Default())))
	require.NoError(t, r.Register(MustNew(2, Default())))
	require.ErrorIs(t, r.Register(MustNew(2, Default())), ErrVersionExists)

	_, status, err := r.Get(2)
	require.NoError(t, err)
	assert.Equal(t, StatusStaging, status)

	require.NoError(t, r.Activate(1))
	active, err := r.Active()
	require.NoError(t, err)
	assert.Equal(t, 1, active.Version())

	require.NoError(t, r.Activate(2))
	active, err = r.Active()
	require.NoError(t, err)
	assert.Equal(t, 2, active.Version())
	assert.Equal(t, []int{1}, r.Versions(StatusDeprecated))
	assert.Equal(t, 2, r.LastVersion())

	require.NoError(t, r.Deprecate(2))
	_, err = r.Active()
	require.ErrorIs(t, err, ErrNoActiveVersion)

	require.ErrorIs(t, r.Activate(9), ErrUnknownVersion)
	_, _, err = r.Get(9)
	require.ErrorIs(t, err, ErrUnknownVersion)
}
