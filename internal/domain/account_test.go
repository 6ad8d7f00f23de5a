package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccount_PublicOmitsSecret(t *testing.T) {
	acc := &Account{
		ID:           7,
		Name:         "Ana",
		Email:        "ana@x.com",
		Phone:        "+1-555-0100",
		PasswordHash: "$2a$10$secret",
		CreatedAt:    time.Unix(100, 0).UTC(),
		UpdatedAt:    time.Unix(200, 0).UTC(),
	}

	raw, err := json.Marshal(acc.Public())
	require.NoError(t, err)

	assert.NotContains(t, string(raw), "secret")
	assert.NotContains(t, string(raw), "password")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.ElementsMatch(t,
		[]string{"id", "name", "email", "phone", "created_at", "updated_at"},
		keys(decoded),
	)
}

func TestAccountPatch_Apply(t *testing.T) {
	name := "Ana Maria"
	acc := &Account{Name: "Ana", Email: "ana@x.com", Phone: "123"}

	patch := AccountPatch{Name: &name}
	require.False(t, patch.Empty())
	patch.Apply(acc)

	assert.Equal(t, "Ana Maria", acc.Name)
	assert.Equal(t, "ana@x.com", acc.Email)
	assert.Equal(t, "123", acc.Phone)
	assert.True(t, AccountPatch{}.Empty())
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
