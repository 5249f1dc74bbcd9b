package auth

import (
	"testing"
	"time"

	"github.com/dmitrijs2005/kbupload/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func signed(t *testing.T, c Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte("server-secret"))
	require.NoError(t, err)
	return s
}

func TestInspect(t *testing.T) {
	fixed := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	orig := now
	now = func() time.Time { return fixed }
	t.Cleanup(func() { now = orig })

	valid := signed(t, Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(fixed.Add(time.Hour))},
		UserID:           "42", Role: "USER", OrgTags: "eng, ops,,", PrimaryOrg: "eng",
	})
	expired := signed(t, Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(fixed.Add(-time.Minute))},
		UserID:           "42",
	})
	noExpiry := signed(t, Claims{UserID: "7"})

	t.Run("valid", func(t *testing.T) {
		c, err := Inspect(valid)
		require.NoError(t, err)
		assert.Equal(t, "42", c.UserID)
		assert.Equal(t, "eng", c.PrimaryOrg)
		assert.Equal(t, []string{"eng", "ops"}, c.Orgs())
	})

	t.Run("bearer prefix", func(t *testing.T) {
		c, err := Inspect("Bearer " + valid)
		require.NoError(t, err)
		assert.Equal(t, "42", c.UserID)
	})

	t.Run("no expiry", func(t *testing.T) {
		c, err := Inspect(noExpiry)
		require.NoError(t, err)
		assert.Equal(t, "7", c.UserID)
		assert.Empty(t, c.Orgs())
	})

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"empty", "  ", common.ErrNoToken},
		{"garbage", "not-a-jwt", common.ErrInvalidToken},
		{"expired", expired, common.ErrTokenExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Inspect(tt.token)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestTokenStore(t *testing.T) {
	keyring.MockInit()
	s := NewTokenStore("")

	_, err := s.Get()
	assert.ErrorIs(t, err, common.ErrNoToken)

	require.NoError(t, s.Set("tok-1"))
	got, err := s.Get()
	require.NoError(t, err)
	assert.Equal(t, "tok-1", got)

	require.NoError(t, s.Delete())
	require.NoError(t, s.Delete())
	_, err = s.Get()
	assert.ErrorIs(t, err, common.ErrNoToken)
}

func TestResolve(t *testing.T) {
	keyring.MockInit()
	s := NewTokenStore("kbupload-test")

	got, err := Resolve("explicit", s)
	require.NoError(t, err)
	assert.Equal(t, "explicit", got)

	_, err = Resolve("", s)
	assert.ErrorIs(t, err, common.ErrNoToken)

	_, err = Resolve("", nil)
	assert.ErrorIs(t, err, common.ErrNoToken)

	require.NoError(t, s.Set("stored"))
	got, err = Resolve("", s)
	require.NoError(t, err)
	assert.Equal(t, "stored", got)
}
