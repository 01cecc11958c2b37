package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtool-infra/dtool-config-generator/pkg/models"
)

func TestRequireConfirmed(t *testing.T) {
	tests := []struct {
		name    string
		user    *models.User
		wantErr error
	}{
		{"confirmed and activated", &models.User{Confirmed: true, Activated: true}, nil},
		{"deactivated", &models.User{Confirmed: true, Activated: false}, models.ErrUserDeactivated},
		{"unconfirmed", &models.User{Confirmed: false, Activated: true}, models.ErrUserUnconfirmed},
		{"neither", &models.User{}, models.ErrUserDeactivated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := requireConfirmed(tt.user)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
