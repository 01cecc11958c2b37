package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetDisplayName(t *testing.T) {
	user := &User{Username: "jh1130"}
	assert.Equal(t, "jh1130", user.GetDisplayName())

	user.Name = "Jessica Hoyle"
	assert.Equal(t, "Jessica Hoyle", user.GetDisplayName())
}

func TestCanGenerateCredentials(t *testing.T) {
	tests := []struct {
		name      string
		activated bool
		confirmed bool
		want      bool
	}{
		{"confirmed and activated", true, true, true},
		{"unconfirmed", true, false, false},
		{"deactivated", false, true, false},
		{"neither", false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user := &User{Activated: tt.activated, Confirmed: tt.confirmed}
			assert.Equal(t, tt.want, user.CanGenerateCredentials())
		})
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, (&User{ID: 1130, Username: "jh1130"}).Validate())
	assert.Error(t, (&User{ID: 1130}).Validate())
	assert.Error(t, (&User{Username: "jh1130"}).Validate())
}
