package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrijr/taskflow/pkg/api"
)

func TestSession_LogInAs(t *testing.T) {
	s := NewSession(nil)

	_, err := s.CurrentActor()
	assert.ErrorIs(t, err, api.ErrUnauthenticated)

	require.NoError(t, s.LogInAs("user1"))
	actor, err := s.CurrentActor()
	require.NoError(t, err)
	assert.Equal(t, "user1", actor)

	require.NoError(t, s.LogInAs("user2"))
	actor, err = s.CurrentActor()
	require.NoError(t, err)
	assert.Equal(t, "user2", actor)

	s.LogOut()
	_, err = s.CurrentActor()
	assert.ErrorIs(t, err, api.ErrUnauthenticated)
}

func TestSession_RejectsEmptyActor(t *testing.T) {
	s := NewSession(nil)
	require.NoError(t, s.LogInAs("user1"))

	assert.ErrorIs(t, s.LogInAs(""), api.ErrUnauthenticated)

	// A failed login keeps the previous actor.
	actor, err := s.CurrentActor()
	require.NoError(t, err)
	assert.Equal(t, "user1", actor)
}

func TestSession_WithDirectory(t *testing.T) {
	dir := NewStaticDirectory("user1")
	s := NewSession(dir)

	assert.ErrorIs(t, s.LogInAs("user2"), api.ErrUnauthenticated)

	dir.Add("user2")
	require.NoError(t, s.LogInAs("user2"))
}

func TestCheck(t *testing.T) {
	dir := NewStaticDirectory("user1", "user2")

	assert.NoError(t, Check(nil, "anyone"))
	assert.NoError(t, Check(dir, "user2"))
	assert.ErrorIs(t, Check(nil, ""), api.ErrUnauthenticated)
	assert.ErrorIs(t, Check(dir, "user3"), api.ErrUnauthenticated)
}
