package kvtree

import (
	"fmt"
	"testing"

	"github.com/ruteri/server-identity-backend/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTreeBackendFactory(t *testing.T) {
	factory := NewTreeBackendFactory(testLogger())

	tests := []struct {
		name      string
		uri       string
		expectErr bool
		check     func(t *testing.T, tree interfaces.KVTree)
	}{
		{
			name: "memory",
			uri:  "memory://",
			check: func(t *testing.T, tree interfaces.KVTree) {
				assert.IsType(t, &MemoryTree{}, tree)
			},
		},
		{
			name: "pebble",
			uri:  fmt.Sprintf("pebble://%s", t.TempDir()),
			check: func(t *testing.T, tree interfaces.KVTree) {
				assert.IsType(t, &PebbleTree{}, tree)
			},
		},
		{
			name:      "pebble without path",
			uri:       "pebble://",
			expectErr: true,
		},
		{
			name: "vault",
			uri:  "vault://vault.example.com:8200/secret/identity",
			check: func(t *testing.T, tree interfaces.KVTree) {
				assert.IsType(t, &VaultTree{}, tree)
				assert.Equal(t, "vault-secret-identity", tree.Name())
			},
		},
		{
			name:      "vault without host",
			uri:       "vault:///secret/identity",
			expectErr: true,
		},
		{
			name:      "vault without data path",
			uri:       "vault://vault.example.com:8200/secret",
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			location, err := interfaces.NewTreeLocation(tt.uri)
			require.NoError(t, err)

			tree, err := factory.TreeFor(location)
			if tt.expectErr {
				assert.ErrorIs(t, err, interfaces.ErrInvalidLocationURI)
				return
			}
			require.NoError(t, err)
			defer tree.Close()
			tt.check(t, tree)
		})
	}
}
