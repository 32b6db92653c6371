package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/duka/internal/model"
)

var admin = &model.User{ID: 1, Username: "admin", Role: model.RoleAdmin}

func TestIssueAndValidate(t *testing.T) {
	iss := NewIssuer("test-secret-key", 0)

	token, issued, err := iss.Issue(admin)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.Len(t, issued.ID, 32)

	claims, err := iss.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, int64(1), claims.UserID)
	assert.Equal(t, "admin", claims.Username)
	assert.Equal(t, model.RoleAdmin, claims.Role)
	assert.Equal(t, issued.ID, claims.ID)
	assert.Equal(t, model.Actor{UserID: 1, Username: "admin"}, claims.Actor())
}

func TestUniqueTokenIDs(t *testing.T) {
	iss := NewIssuer("s", 0)
	_, a, err := iss.Issue(admin)
	require.NoError(t, err)
	_, b, err := iss.Issue(admin)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestValidateWrongSecret(t *testing.T) {
	token, _, _ := NewIssuer("secret1", 0).Issue(admin)

	_, err := NewIssuer("secret2", 0).Validate(token)
	assert.Error(t, err)
}

func TestValidateInvalid(t *testing.T) {
	_, err := NewIssuer("secret", 0).Validate("not-a-token")
	assert.Error(t, err)
}

func TestValidateRejectsOtherAlgorithms(t *testing.T) {
	claims := Claims{
		UserID: 1,
		Role:   model.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "x",
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewIssuer("secret", 0).Validate(token)
	assert.Error(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = NewIssuer("secret", 0).Validate(none)
	assert.Error(t, err)
}

func TestTokenExpiry(t *testing.T) {
	iss := NewIssuer("test", time.Hour)
	token, _, err := iss.Issue(admin)
	require.NoError(t, err)

	claims, err := iss.Validate(token)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, 5*time.Second)

	iss.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = iss.Validate(token)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "expired"))
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "correct horse"))
	assert.False(t, CheckPassword(hash, "wrong"))

	pw, err := GeneratePassword(16)
	require.NoError(t, err)
	assert.Len(t, pw, 16)
}
