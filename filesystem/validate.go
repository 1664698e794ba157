package filesystem

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf16"
)

const (
	// Separator delimits path segments
	Separator = "/"

	// MaxNameLen is the longest name in UTF-16 code units (not bytes)
	MaxNameLen = 255
)

var (
	permissionRegex = regexp.MustCompile(`^([r-][w-][x-]){3}$`)

	errNameTooLong = errors.New("file name too long")
)

// ValidateName checks a node name in isolation; sibling conflicts are
// checked by the tree.
func ValidateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty name", ErrInvalidName)
	case nameLen(name) > MaxNameLen:
		return fmt.Errorf("%w: %w", ErrInvalidName, errNameTooLong)
	case strings.Contains(name, Separator):
		return fmt.Errorf("%w: %q contains %q", ErrInvalidName, name, Separator)
	case name == "." || name == "..":
		return fmt.Errorf("%w: %q is reserved", ErrInvalidName, name)
	}
	return nil
}

// nameLen counts UTF-16 code units; runes outside the BMP count twice
func nameLen(name string) int {
	return len(utf16.Encode([]rune(name)))
}

// ValidatePermissions checks the symbolic owner/group/other triads i.e. "rwxr-x---"
func ValidatePermissions(perms string) error {
	if !permissionRegex.MatchString(perms) {
		return fmt.Errorf("%w: %q", ErrInvalidPermissionFormat, perms)
	}
	return nil
}
