package filesystem

import (
	"strings"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      string
		wantErr bool
	}{
		{"simple", "file.txt", false},
		{"dotfile", ".bashrc", false},
		{"triple dot", "...", false},
		{"unicode", "résumé ✓", false},
		{"max length", strings.Repeat("a", MaxNameLen), false},
		{"max length multibyte", strings.Repeat("é", MaxNameLen), false},
		{"max length astral", strings.Repeat("😀", (MaxNameLen-1)/2) + "a", false},
		{"empty", "", true},
		{"too long", strings.Repeat("a", MaxNameLen+1), true},
		{"too long astral", strings.Repeat("😀", (MaxNameLen+1)/2), true},
		{"separator", "a/b", true},
		{"only separator", "/", true},
		{"dot", ".", true},
		{"dot dot", "..", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateName(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidName)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateName_TooLongMapsToENAMETOOLONG(t *testing.T) {
	t.Parallel()

	err := ValidateName(strings.Repeat("x", MaxNameLen+1))

	assert.Equal(t, syscall.ENAMETOOLONG, ToErrno(newError(OpCreate, "/x", err)))
	assert.Equal(t, syscall.EINVAL, ToErrno(ValidateName("..")))
}

func TestValidatePermissions(t *testing.T) {
	t.Parallel()

	valid := []string{"rwxrwxrwx", "---------", "rw-r--r--", "rwxr-x---", "r--r--r--"}
	for _, p := range valid {
		assert.NoError(t, ValidatePermissions(p), p)
	}

	invalid := []string{"", "rwxrwxrw", "rwxrwxrwxr", "rwzrwxr--", "wrxrwxrwx", "RWXRWXRWX", "rwx rwx r"}
	for _, p := range invalid {
		err := ValidatePermissions(p)
		assert.ErrorIs(t, err, ErrInvalidPermissionFormat, p)
	}
}
