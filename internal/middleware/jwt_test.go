package middleware

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeToken creates a signed HS256 JWT from the given secret and claims.
func makeToken(secret string, claims jwt.MapClaims) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, _ := token.SignedString([]byte(secret))
	return signed
}

func TestNewHS256Validator_RequiresSecret(t *testing.T) {
	_, err := NewHS256Validator("")
	require.Error(t, err)
}

func TestHS256Validator_IssueAndValidate(t *testing.T) {
	v, err := NewHS256Validator("test-secret")
	require.NoError(t, err)

	tok, exp, err := v.Issue("alice", time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	claims, err := v.Validate(t.Context(), tok)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
	assert.Equal(t, TokenIssuer, claims.Issuer)
	assert.Equal(t, exp.Unix(), claims.ExpiresAt.Unix())
}

func TestHS256Validator_Validate(t *testing.T) {
	t.Parallel()

	const secret = "test-secret-32-bytes-long-xxxxx"
	v, err := NewHS256Validator(secret)
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		wantErr string
		wantSub string
	}{
		{
			name: "valid token",
			token: makeToken(secret, jwt.MapClaims{
				"sub": "user-123",
				"exp": time.Now().Add(time.Hour).Unix(),
			}),
			wantSub: "user-123",
		},
		{
			name: "expired",
			token: makeToken(secret, jwt.MapClaims{
				"sub": "user-123",
				"exp": time.Now().Add(-time.Hour).Unix(),
			}),
			wantErr: "token verification failed",
		},
		{
			name:    "missing expiry",
			token:   makeToken(secret, jwt.MapClaims{"sub": "user-123"}),
			wantErr: "token verification failed",
		},
		{
			name: "missing subject",
			token: makeToken(secret, jwt.MapClaims{
				"exp": time.Now().Add(time.Hour).Unix(),
			}),
			wantErr: "missing subject",
		},
		{
			name: "wrong secret",
			token: makeToken("other-secret", jwt.MapClaims{
				"sub": "user-123",
				"exp": time.Now().Add(time.Hour).Unix(),
			}),
			wantErr: "token verification failed",
		},
		{
			name:    "garbage",
			token:   "not-a-jwt",
			wantErr: "token verification failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			claims, err := v.Validate(t.Context(), tt.token)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSub, claims.Subject)
		})
	}
}

func TestHS256Validator_RejectsOtherAlgorithms(t *testing.T) {
	v, err := NewHS256Validator("secret")
	require.NoError(t, err)

	tok := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{
		"sub": "user",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := tok.SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = v.Validate(t.Context(), signed)
	require.Error(t, err)
}
