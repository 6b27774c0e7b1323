package models_test

import (
	"chatterbox/backend/internal/models"
	"encoding/json"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestIdentityBeforeCreate_DefaultsStatus verifies that the hook fills in the offline status.
func TestIdentityBeforeCreate_DefaultsStatus(t *testing.T) {
	// Arrange
	identity := &models.Identity{Username: "alice"}

	// Act
	err := identity.BeforeCreate(nil) // nil *gorm.DB is acceptable for this hook

	// Assert
	assert.NoError(t, err)
	assert.Equal(t, models.StatusOffline, identity.Status)
	assert.False(t, identity.IsOnline())
}

// TestIdentityBeforeCreate_PreservesStatus verifies that an explicit status is kept.
func TestIdentityBeforeCreate_PreservesStatus(t *testing.T) {
	identity := &models.Identity{Username: "bob", Status: models.StatusOnline}

	err := identity.BeforeCreate(nil)

	assert.NoError(t, err)
	assert.Equal(t, models.StatusOnline, identity.Status)
	assert.True(t, identity.IsOnline())
}

// TestIdentityBeforeCreate_RejectsBlankUsername covers empty and whitespace-only names.
func TestIdentityBeforeCreate_RejectsBlankUsername(t *testing.T) {
	for _, name := range []string{"", "   ", "\t\n"} {
		identity := &models.Identity{Username: name}
		err := identity.BeforeCreate(nil)
		assert.ErrorIs(t, err, models.ErrEmptyUsername, "username %q should be rejected", name)
	}
}

// TestIdentityStructTags guards the schema against accidental tag removal.
func TestIdentityStructTags(t *testing.T) {
	identityType := reflect.TypeOf(models.Identity{})

	usernameField, found := identityType.FieldByName("Username")
	assert.True(t, found)
	assert.Contains(t, usernameField.Tag.Get("gorm"), "primaryKey")
	assert.Equal(t, "username", usernameField.Tag.Get("json"))

	lastSeenField, found := identityType.FieldByName("LastSeen")
	assert.True(t, found)
	assert.Equal(t, reflect.Ptr, lastSeenField.Type.Kind(), "LastSeen must be nullable")

	assert.Equal(t, "users", models.Identity{}.TableName())
	assert.Equal(t, "messages", models.ChatMessage{}.TableName())
	assert.Equal(t, "private_messages", models.PrivateMessage{}.TableName())
}

// TestIdentityJSON_NullLastSeen checks that an online identity serializes last_seen as null.
func TestIdentityJSON_NullLastSeen(t *testing.T) {
	raw, err := json.Marshal(models.Identity{Username: "alice", Status: models.StatusOnline})
	require.NoError(t, err)
	assert.JSONEq(t, `{"username":"alice","status":"online","last_seen":null}`, string(raw))
}

func TestPrivateAudience_IsUnordered(t *testing.T) {
	ab := models.PrivateAudience("alice", "bob")
	ba := models.PrivateAudience("bob", "alice")

	assert.Equal(t, ab, ba)
	assert.Equal(t, ab.Key(), ba.Key())
	assert.False(t, ab.IsPublic())
	assert.True(t, ab.Includes("alice"))
	assert.True(t, ab.Includes("bob"))
	assert.False(t, ab.Includes("carol"))
}

func TestPublicAudience_IncludesEveryone(t *testing.T) {
	public := models.PublicAudience()

	assert.True(t, public.IsPublic())
	assert.True(t, public.Includes("anyone"))
	assert.Equal(t, "public", public.Key())
	assert.NotEqual(t, public.Key(), models.PrivateAudience("a", "b").Key())
}

// TestAudienceKey_NoSeparatorCollision makes sure the pair encoding is unambiguous.
func TestAudienceKey_NoSeparatorCollision(t *testing.T) {
	a := models.PrivateAudience("a:b", "c")
	b := models.PrivateAudience("a", "b:c")
	assert.NotEqual(t, a.Key(), b.Key())
}

func TestPrivateMessage_Involves(t *testing.T) {
	msg := models.PrivateMessage{Sender: "alice", Receiver: "bob"}
	assert.True(t, msg.Involves("alice"))
	assert.True(t, msg.Involves("bob"))
	assert.False(t, msg.Involves("carol"))
}
