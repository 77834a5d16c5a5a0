package model

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	// canonicalConversationID matches host-assigned ids such as
	// "5511999999999@c.us" or "5511999999999-1600000000@g.us"
	canonicalConversationID = regexp.MustCompile(`^[0-9]+(-[0-9]+)?@[a-z0-9]+(\.[a-z0-9]+)*$`)

	// slugConversationID matches ids derived locally, either from a display
	// name or as a surrogate
	slugConversationID = regexp.MustCompile(`^[a-z0-9]+(_[a-z0-9]+)*$`)

	slugSeparators = regexp.MustCompile(`[^a-z0-9]+`)
)

// SurrogateConversationPrefix marks locally generated conversation ids
const SurrogateConversationPrefix = "local_"

// IsValidConversationID reports whether id is in one of the recognized forms
func IsValidConversationID(id string) bool {
	return canonicalConversationID.MatchString(id) || slugConversationID.MatchString(id)
}

// SlugConversationID derives an id from a display name. Two conversations
// sharing a display name collide; prefer NewSurrogateConversationID when the
// host does not expose a stable id.
func SlugConversationID(label string) string {
	slug := slugSeparators.ReplaceAllString(strings.ToLower(strings.TrimSpace(label)), "_")
	return strings.Trim(slug, "_")
}

// NewSurrogateConversationID returns a locally unique id accepted by the slug form
func NewSurrogateConversationID() string {
	return SurrogateConversationPrefix + strings.ReplaceAll(uuid.New().String(), "-", "")
}
