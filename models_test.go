package accounts_test

import (
	"testing"

	accounts "github.com/goliatone/go-accounts"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeIdentifier(t *testing.T) {
	tests := []struct {
		name       string
		identifier string
		want       string
	}{
		{
			name:       "Lowercases",
			identifier: "PeperOne",
			want:       "peperone",
		},
		{
			name:       "Trims whitespace",
			identifier: "  user@Example.COM ",
			want:       "user@example.com",
		},
		{
			name:       "Already normalized",
			identifier: "plain",
			want:       "plain",
		},
		{
			name:       "Empty string",
			identifier: "",
			want:       "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, accounts.NormalizeIdentifier(tt.identifier))
		})
	}
}

func TestUserNormalize(t *testing.T) {
	user := &accounts.User{
		Username: " PeperOne ",
		Email:    "Peper@Example.COM",
		FullName: "  Peper One  ",
	}

	user.Normalize()

	assert.Equal(t, "peperone", user.Username)
	assert.Equal(t, "peper@example.com", user.Email)
	assert.Equal(t, "Peper One", user.FullName)
}
