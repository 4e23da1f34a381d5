package dto

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterRequestValidate(t *testing.T) {
	valid := RegisterRequest{Name: "Ada", Email: "ada@example.com", Password: "password1"}
	require.NoError(t, valid.Validate())

	tests := map[string]struct {
		req   RegisterRequest
		field string
	}{
		"missing name":      {RegisterRequest{Email: "ada@example.com", Password: "password1"}, "name"},
		"bad email":         {RegisterRequest{Name: "Ada", Email: "ada", Password: "password1"}, "email"},
		"short password":    {RegisterRequest{Name: "Ada", Email: "ada@example.com", Password: "pass1"}, "password"},
		"password no digit": {RegisterRequest{Name: "Ada", Email: "ada@example.com", Password: "password"}, "password"},
		"password no alpha": {RegisterRequest{Name: "Ada", Email: "ada@example.com", Password: "12345678"}, "password"},
		"password too long": {RegisterRequest{Name: "Ada", Email: "ada@example.com", Password: strings.Repeat("a", 99) + "1"}, "password"},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			err := tc.req.Validate()
			require.Error(t, err)
			assert.Contains(t, ValidationDetails(err), tc.field)
		})
	}
}

func TestResetPasswordRequestValidate(t *testing.T) {
	err := ResetPasswordRequest{Password: "password1"}.Validate()
	require.Error(t, err)
	assert.Contains(t, ValidationDetails(err), "token")

	assert.NoError(t, ResetPasswordRequest{Token: "t", Password: "password1"}.Validate())
}

func TestPasswordLimitCountsBytes(t *testing.T) {
	atLimit := strings.Repeat("a", 71) + "1"
	assert.NoError(t, RegisterRequest{Name: "Ada", Email: "ada@example.com", Password: atLimit}.Validate())

	// 42 runes but 82 bytes.
	multibyte := strings.Repeat("é", 40) + "a1"
	err := RegisterRequest{Name: "Ada", Email: "ada@example.com", Password: multibyte}.Validate()
	require.Error(t, err)
	assert.Contains(t, ValidationDetails(err), "password")

	err = ResetPasswordRequest{Token: "t", Password: multibyte}.Validate()
	require.Error(t, err)
	assert.Contains(t, ValidationDetails(err), "password")
}

func TestUserIDParamValidate(t *testing.T) {
	assert.NoError(t, UserIDParam{ID: "7b0c4d1e-4c1f-4f8a-9a55-0d7e2b7c1a11"}.Validate())
	assert.Error(t, UserIDParam{ID: "not-a-uuid"}.Validate())
}

func TestValidationDetailsPlainError(t *testing.T) {
	details := ValidationDetails(errors.New("boom"))
	assert.Equal(t, "boom", details["error"])
}
