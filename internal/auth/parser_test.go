package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/procurement-ipc/internal/model"
)

func TestParser_RoundTrip(t *testing.T) {
	parser := NewParser("test-secret")
	vendorID := uuid.New()
	principal := model.Principal{UserID: uuid.New(), Name: "Vera", Role: model.RoleVendor, VendorID: &vendorID}

	token, err := parser.Issue(principal, time.Hour)
	require.NoError(t, err)

	parsed, err := parser.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, principal.UserID, parsed.UserID)
	assert.Equal(t, model.RoleVendor, parsed.Role)
	require.NotNil(t, parsed.VendorID)
	assert.Equal(t, vendorID, *parsed.VendorID)
}

func TestParser_Rejects(t *testing.T) {
	parser := NewParser("test-secret")
	reviewer := model.Principal{UserID: uuid.New(), Role: model.RoleFinanceReviewer}

	expired, err := parser.Issue(reviewer, -time.Hour)
	require.NoError(t, err)
	_, err = parser.Parse(expired)
	assert.ErrorIs(t, err, ErrTokenExpired)

	foreign, err := NewParser("other-secret").Issue(reviewer, time.Hour)
	require.NoError(t, err)
	_, err = parser.Parse(foreign)
	assert.ErrorIs(t, err, ErrInvalidToken)

	unknownRole, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role:             "JANITOR",
		RegisteredClaims: jwt.RegisteredClaims{Subject: uuid.NewString()},
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = parser.Parse(unknownRole)
	assert.ErrorIs(t, err, ErrInvalidToken)

	vendorWithoutID, err := parser.Issue(model.Principal{UserID: uuid.New(), Role: model.RoleVendor}, time.Hour)
	require.NoError(t, err)
	_, err = parser.Parse(vendorWithoutID)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = parser.Parse("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
