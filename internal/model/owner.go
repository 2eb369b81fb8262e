package model

import (
	"regexp"
	"strings"
)

// GuestPrefix marks owners whose fragments are kept in the guest space only.
const GuestPrefix = "guest"

var ownerUnsafe = regexp.MustCompile(`[^a-zA-Z0-9-]`)

// SanitizeOwner strips everything but ASCII letters, digits and dashes from
// an owner id and lower-cases the rest.
func SanitizeOwner(id string) string {
	return strings.ToLower(ownerUnsafe.ReplaceAllString(id, ""))
}

// IsGuest reports whether a sanitised owner id belongs to a guest.
func IsGuest(owner string) bool {
	return strings.HasPrefix(owner, GuestPrefix)
}
