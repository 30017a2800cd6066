package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenValidator_SignAndValidate(t *testing.T) {
	v := NewTokenValidator("service-secret-32-chars-long!!!!")

	t.Run("sign and validate", func(t *testing.T) {
		token, err := v.Sign(42, 15*time.Minute)
		require.NoError(t, err)
		assert.NotEmpty(t, token)

		claims, err := v.Validate(token)
		require.NoError(t, err)
		assert.Equal(t, int64(42), claims.UserID)
	})

	t.Run("invalid token fails validation", func(t *testing.T) {
		_, err := v.Validate("invalid-token")
		assert.Error(t, err)
	})

	t.Run("wrong secret fails validation", func(t *testing.T) {
		other := NewTokenValidator("another-secret-32-chars-long!!!!")
		token, err := other.Sign(42, 15*time.Minute)
		require.NoError(t, err)

		_, err = v.Validate(token)
		assert.Error(t, err)
	})

	t.Run("expired token fails", func(t *testing.T) {
		token, err := v.Sign(42, -1*time.Second)
		require.NoError(t, err)

		_, err = v.Validate(token)
		assert.Error(t, err)
	})

	t.Run("zero user id rejected", func(t *testing.T) {
		token, err := v.Sign(0, 15*time.Minute)
		require.NoError(t, err)

		_, err = v.Validate(token)
		assert.Error(t, err)
	})
}
