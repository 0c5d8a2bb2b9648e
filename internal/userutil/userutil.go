package userutil

import (
	"os"
	"os/user"
	"regexp"
	"strings"
)

var invalidUsernameRune = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// SanitizeUsername normalizes username-like values used in pipe, socket and
// mutex names.
func SanitizeUsername(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	return invalidUsernameRune.ReplaceAllString(value, "_")
}

// lookupCurrentUser is a test seam.
var lookupCurrentUser = user.Current

// CurrentUsername returns the sanitized name of the user running the
// process. USERNAME (Windows) and USER (POSIX) are preferred over the
// account database so that tests can pin the value.
func CurrentUsername() string {
	for _, key := range []string{"USERNAME", "USER"} {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return SanitizeUsername(v)
		}
	}
	if current, err := lookupCurrentUser(); err == nil {
		return SanitizeUsername(current.Username)
	}
	return SanitizeUsername("")
}
