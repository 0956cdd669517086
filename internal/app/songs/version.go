package songs

import (
	"regexp"
	"strconv"
)

var versionToken = regexp.MustCompile(`^"\d+"$`)

// ParseVersionToken converts a conditional-request token of the form "<digits>"
// into a version number.
func ParseVersionToken(token string) (int, error) {
	if !versionToken.MatchString(token) {
		return 0, &VersionInvalidError{Token: token}
	}
	version, err := strconv.Atoi(token[1 : len(token)-1])
	if err != nil {
		return 0, &VersionInvalidError{Token: token}
	}
	return version, nil
}

// FormatVersionToken renders version as a quoted token suitable for ETag.
func FormatVersionToken(version int) string {
	return `"` + strconv.Itoa(version) + `"`
}
