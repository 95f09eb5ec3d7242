package jwttoken

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "chronicle/pkg/domain-errors"
)

func TestJWTService_RoundTrip(t *testing.T) {
	svc := NewJWTService("test-signing-key", "chronicle", "chronicle-console")
	userID := uuid.New()

	token, err := svc.GenerateAccessToken(userID, "Dana Admin", "auditor", time.Hour)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.UserID)
	assert.Equal(t, "Dana Admin", claims.UserName)
	assert.Equal(t, "auditor", claims.Role)

	extracted, err := svc.ExtractUserIDFromToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, extracted)
}

func TestJWTService_Rejections(t *testing.T) {
	svc := NewJWTService("test-signing-key", "chronicle", "chronicle-console")

	t.Run("expired token", func(t *testing.T) {
		token, err := svc.GenerateAccessToken(uuid.New(), "x", "auditor", -time.Minute)
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("wrong signing key", func(t *testing.T) {
		other := NewJWTService("different-key", "chronicle", "chronicle-console")
		token, err := other.GenerateAccessToken(uuid.New(), "x", "auditor", time.Hour)
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := svc.ValidateToken("not.a.token")
		require.Error(t, err)
	})
}
