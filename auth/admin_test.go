package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tdl-smp/portal/auth"
	"golang.org/x/crypto/bcrypt"
)

func TestVerifyPlainPassword(t *testing.T) {
	c := auth.AdminCredentials{Username: "admin", Password: "hunter2", Reviewer: "TDLAdmin"}
	assert.True(t, c.Verify("admin", "hunter2"))
	assert.False(t, c.Verify("admin", "hunter3"))
	assert.False(t, c.Verify("root", "hunter2"))
	assert.False(t, c.Verify("", ""))
}

func TestVerifyBcryptPassword(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)
	c := auth.AdminCredentials{Username: "admin", Password: string(hash)}
	assert.True(t, c.Verify("admin", "hunter2"))
	assert.False(t, c.Verify("admin", string(hash)))
}

func TestVerifyUnconfigured(t *testing.T) {
	assert.False(t, auth.AdminCredentials{}.Verify("", ""))
	assert.False(t, auth.AdminCredentials{Username: "admin"}.Verify("admin", ""))
}

func TestGrant(t *testing.T) {
	c := auth.AdminCredentials{Username: "admin", Password: "x", Reviewer: "TDLAdmin"}
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))
	g := c.Grant(now)
	assert.Equal(t, "TDLAdmin", g.Reviewer)
	assert.True(t, now.Equal(g.GrantedAt))
	assert.Equal(t, time.UTC, g.GrantedAt.Location())
}
