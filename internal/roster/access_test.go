package roster

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanEditCell(t *testing.T) {
	cases := []struct {
		name      string
		isAdmin   bool
		ownKey    string
		targetKey string
		want      bool
	}{
		{"admin edits any row", true, "Martin Paul", "Durand Jean", true},
		{"admin with no profile", true, "", "Durand Jean", true},
		{"own row", false, "Martin Paul", "Martin Paul", true},
		{"other row", false, "Martin Paul", "Durand Jean", false},
		{"no profile edits nothing", false, "", "Martin Paul", false},
		{"whitespace only profile", false, "   ", "Martin Paul", false},
		{"trimmed match", false, "Martin Paul", "  Martin Paul  ", true},
		{"partial name is not a match", false, "Martin", "Martin Paul", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, CanEditCell(tc.isAdmin, tc.ownKey, tc.targetKey))
		})
	}
}
