package models

import (
	"slices"
	"strings"
)

// AudienceKind distinguishes the public room from a private conversation.
type AudienceKind string

const (
	AudiencePublic  AudienceKind = "public"
	AudiencePrivate AudienceKind = "private"
)

// Audience is the scope of a typing indicator: the public room or an
// unordered pair of usernames.
type Audience struct {
	Kind  AudienceKind `json:"kind"`
	Users []string     `json:"users,omitempty"`
}

// PublicAudience returns the audience of the shared room.
func PublicAudience() Audience {
	return Audience{Kind: AudiencePublic}
}

// PrivateAudience returns the audience of the conversation between a and b.
// The pair is stored sorted so PrivateAudience(a, b) equals PrivateAudience(b, a).
func PrivateAudience(a, b string) Audience {
	users := []string{a, b}
	slices.Sort(users)
	return Audience{Kind: AudiencePrivate, Users: users}
}

// IsPublic reports whether the audience is the shared room.
func (a Audience) IsPublic() bool { return a.Kind == AudiencePublic }

// Includes reports whether username belongs to the audience.
// Everyone belongs to the public room.
func (a Audience) Includes(username string) bool {
	if a.IsPublic() {
		return true
	}
	return slices.Contains(a.Users, username)
}

// Key identifies the audience in maps.
func (a Audience) Key() string {
	if a.IsPublic() {
		return string(AudiencePublic)
	}
	return string(AudiencePrivate) + ":" + strings.Join(a.Users, "\x00")
}
