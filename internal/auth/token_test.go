// ABOUTME: Tests for JWT generation and verification.
// ABOUTME: Covers round trips, expiry, claim validation and wrong-secret rejection.

package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTVerifier_RoundTrip(t *testing.T) {
	v := NewJWTVerifier([]byte("secret"))

	token, err := v.Generate(Principal{ID: "alice", Name: "Alice", Role: "admin"}, time.Hour)
	require.NoError(t, err)

	p, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", p.ID)
	assert.Equal(t, "Alice", p.Name)
	assert.Equal(t, "admin", p.Role)
}

func TestJWTVerifier_Expired(t *testing.T) {
	v := NewJWTVerifier([]byte("secret"))

	token, err := v.Generate(Principal{ID: "alice"}, -time.Minute)
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestJWTVerifier_WrongSecret(t *testing.T) {
	signer := NewJWTVerifier([]byte("secret-a"))
	verifier := NewJWTVerifier([]byte("secret-b"))

	token, err := signer.Generate(Principal{ID: "alice"}, time.Hour)
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	assert.Error(t, err)
}

func TestJWTVerifier_Garbage(t *testing.T) {
	v := NewJWTVerifier([]byte("secret"))

	_, err := v.Verify("not-a-token")
	assert.Error(t, err)
}

func TestJWTVerifier_MissingSubject(t *testing.T) {
	secret := []byte("secret")
	v := NewJWTVerifier(secret)

	// Token signed with the right secret but no sub claim.
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"name": "nobody",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(secret)
	require.NoError(t, err)

	_, err = v.Verify(signed)
	assert.ErrorIs(t, err, ErrMissingClaim)
}

func TestJWTVerifier_RejectsUnsignedAlg(t *testing.T) {
	v := NewJWTVerifier([]byte("secret"))

	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "mallory"})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = v.Verify(signed)
	assert.Error(t, err)
}

func TestExtractBearerToken(t *testing.T) {
	token, errMsg := ExtractBearerToken("Bearer abc123")
	assert.Equal(t, "abc123", token)
	assert.Empty(t, errMsg)

	_, errMsg = ExtractBearerToken("")
	assert.NotEmpty(t, errMsg)

	_, errMsg = ExtractBearerToken("Basic abc123")
	assert.NotEmpty(t, errMsg)

	_, errMsg = ExtractBearerToken("Bearer ")
	assert.NotEmpty(t, errMsg)
}
