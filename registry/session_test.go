package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/preethamak/BlockDrive/identity"
)

func TestSession_AddOwnerMismatch(t *testing.T) {
	forEachRegistry(t, func(t *testing.T, r *Registry) {
		err := r.As(bob).Add(alice, "forged")
		assert.ErrorIs(t, err, ErrOwnerMismatch)

		files, err := r.List(alice)
		require.NoError(t, err)
		assert.Empty(t, files)
	})
}

func TestSession_ZeroCaller(t *testing.T) {
	s := New(NewMemStore()).As(identity.Identity{})
	assert.ErrorIs(t, s.Add(identity.Identity{}, "x"), ErrInvalidIdentity)
	_, err := s.Display(alice)
	assert.ErrorIs(t, err, ErrInvalidIdentity)
	assert.ErrorIs(t, s.Allow(bob), ErrInvalidIdentity)
	_, err = s.ShareAccess()
	assert.ErrorIs(t, err, ErrInvalidIdentity)
}

func TestSession_ShareAccess(t *testing.T) {
	forEachRegistry(t, func(t *testing.T, r *Registry) {
		a := r.As(alice)
		assert.Equal(t, alice, a.Caller())

		require.NoError(t, a.Allow(bob))
		require.NoError(t, a.Allow(carol))
		require.NoError(t, a.Disallow(bob))

		grants, err := a.ShareAccess()
		require.NoError(t, err)
		require.Len(t, grants, 2)
		assert.Equal(t, bob, grants[0].Grantee)
		assert.False(t, grants[0].Active)
		assert.Equal(t, carol, grants[1].Grantee)
		assert.True(t, grants[1].Active)

		// Grants are scoped to the caller's own entry.
		others, err := r.As(bob).ShareAccess()
		require.NoError(t, err)
		assert.Empty(t, others)
	})
}
