package chathub_test

import (
	"chatterbox/backend/internal/chathub"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterIsIdempotent(t *testing.T) {
	r := chathub.NewRegistry()
	c := connect(t, r, "c1", "alice")

	r.Register(c)

	username, ok := r.UsernameOf("c1")
	assert.True(t, ok)
	assert.Equal(t, "alice", username, "re-registering must keep the binding")
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_BindUnknownConnection(t *testing.T) {
	r := chathub.NewRegistry()

	_, err := r.Bind("missing", "alice")

	assert.ErrorIs(t, err, chathub.ErrUnknownConnection)
	assert.False(t, r.IsOnline("alice"))
}

func TestRegistry_RebindMovesOnlyThatConnection(t *testing.T) {
	r := chathub.NewRegistry()
	connect(t, r, "c1", "alice")
	connect(t, r, "c2", "alice")

	prev, err := r.Bind("c1", "bob")
	require.NoError(t, err)

	assert.Equal(t, "alice", prev)
	assert.Equal(t, []string{"c2"}, r.ConnectionsFor("alice"))
	assert.Equal(t, []string{"c1"}, r.ConnectionsFor("bob"))
}

func TestRegistry_BindSameUsernameReturnsIt(t *testing.T) {
	r := chathub.NewRegistry()
	connect(t, r, "c1", "alice")

	prev, err := r.Bind("c1", "alice")

	require.NoError(t, err)
	assert.Equal(t, "alice", prev)
	assert.Equal(t, []string{"c1"}, r.ConnectionsFor("alice"))
}

func TestRegistry_Unbind(t *testing.T) {
	r := chathub.NewRegistry()
	connect(t, r, "c1", "alice")
	connect(t, r, "c2", "")

	assert.Equal(t, "alice", r.Unbind("c1"))
	assert.Equal(t, "", r.Unbind("c2"), "identity-less connection")
	assert.Equal(t, "", r.Unbind("c1"), "already removed")
	assert.Equal(t, "", r.Unbind("never-seen"))

	assert.False(t, r.IsOnline("alice"))
	assert.Empty(t, r.ConnectionsFor("alice"))
	assert.NotNil(t, r.ConnectionsFor("alice"))
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_ClientsForDeduplicates(t *testing.T) {
	r := chathub.NewRegistry()
	connect(t, r, "a1", "alice")
	connect(t, r, "a2", "alice")
	connect(t, r, "b1", "bob")
	connect(t, r, "x", "")

	assert.Len(t, r.ClientsFor("alice", "alice"), 2)
	assert.Len(t, r.ClientsFor("alice", "bob", "carol"), 3)
	assert.Len(t, r.Clients(), 4, "unbound connections still receive broadcasts")
	assert.Equal(t, []string{"alice", "bob"}, r.OnlineUsernames())
}

// TestRegistry_ConcurrentBindUnbind exercises the set semantics under churn:
// whatever interleaving happens, IsOnline agrees with ConnectionsFor and every
// connection ends up in exactly one place.
func TestRegistry_ConcurrentBindUnbind(t *testing.T) {
	r := chathub.NewRegistry()
	users := []string{"alice", "bob", "carol"}
	const perUser = 50

	var wg sync.WaitGroup
	for _, user := range users {
		for i := 0; i < perUser; i++ {
			wg.Add(1)
			go func(user string, i int) {
				defer wg.Done()
				id := fmt.Sprintf("%s-%d", user, i)
				c := newMockClient(id)
				r.Register(c)
				_, err := r.Bind(id, user)
				assert.NoError(t, err)
				// Odd connections hop to another user and half of all connections leave.
				if i%2 == 1 {
					_, err := r.Bind(id, "dave")
					assert.NoError(t, err)
				}
				if i%4 < 2 {
					r.Unbind(id)
				}
			}(user, i)
		}
	}
	wg.Wait()

	total := 0
	for _, user := range append(users, "dave") {
		conns := r.ConnectionsFor(user)
		assert.Equal(t, len(conns) > 0, r.IsOnline(user), user)
		total += len(conns)
	}
	assert.Equal(t, r.Len(), total)
	// i%4 == 2 stays with its user, i%4 == 3 stays with dave.
	assert.Len(t, r.ConnectionsFor("alice"), perUser/4)
	assert.Len(t, r.ConnectionsFor("dave"), 3*(perUser/4))
}
