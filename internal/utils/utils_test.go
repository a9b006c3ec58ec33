package utils

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken("secret", "donor-1", time.Hour)
	require.NoError(t, err)

	id, err := ParseToken("secret", token)
	require.NoError(t, err)
	assert.Equal(t, "donor-1", id)
}

func TestTokenRejectsWrongSecretAndExpiry(t *testing.T) {
	token, err := GenerateToken("secret", "donor-1", time.Hour)
	require.NoError(t, err)

	_, err = ParseToken("other", token)
	assert.Error(t, err)

	expired, err := GenerateToken("secret", "donor-1", -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken("secret", expired)
	assert.Error(t, err)

	_, err = ParseToken("secret", "not-a-token")
	assert.Error(t, err)
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("hunter22")
	require.NoError(t, err)

	assert.NotEqual(t, "hunter22", hash)
	assert.True(t, CheckPassword(hash, "hunter22"))
	assert.False(t, CheckPassword(hash, "hunter23"))

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, cost, 10)

	again, err := HashPassword("hunter22")
	require.NoError(t, err)
	assert.NotEqual(t, hash, again, "hashes are salted")
}

func TestNewReference(t *testing.T) {
	ref, err := NewReference()
	require.NoError(t, err)
	assert.Len(t, ref, ReferenceSize)
	for _, r := range ref {
		assert.True(t, strings.ContainsRune(referenceAlphabet, r))
	}
}

func TestParsePagination(t *testing.T) {
	app := fiber.New()
	var got Pagination
	app.Get("/", func(c *fiber.Ctx) error {
		got = ParsePagination(c)
		return nil
	})

	_, err := app.Test(httptest.NewRequest("GET", "/?page=3&limit=10", nil))
	require.NoError(t, err)
	assert.Equal(t, Pagination{Page: 3, Limit: 10, Offset: 20}, got)

	_, err = app.Test(httptest.NewRequest("GET", "/?page=-1&limit=abc", nil))
	require.NoError(t, err)
	assert.Equal(t, Pagination{Page: 1, Limit: 20, Offset: 0}, got)
}
