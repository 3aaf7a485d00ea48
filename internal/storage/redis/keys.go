package redis

import (
	"fmt"
	"strings"

	"github.com/klubhuset/backend/internal/model"
)

// Key prefix for all directory data
const keyPrefix = "klubhus"

// userKey returns the Redis key for a User record
func userKey(id model.UserID) string {
	return fmt.Sprintf("%s:user:%d", keyPrefix, id)
}

// usernameIndexKey returns the Redis key for the username -> user_id index
func usernameIndexKey(username string) string {
	return fmt.Sprintf("%s:idx:username:%s", keyPrefix, username)
}

// emailIndexKey returns the Redis key for the email -> user_id index.
// Emails are compared case-insensitively.
func emailIndexKey(email string) string {
	return fmt.Sprintf("%s:idx:email:%s", keyPrefix, strings.ToLower(email))
}

// nextUserIDKey returns the Redis key of the user id sequence counter
func nextUserIDKey() string {
	return fmt.Sprintf("%s:seq:user_id", keyPrefix)
}
