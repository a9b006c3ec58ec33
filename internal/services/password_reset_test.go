package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/bloodlink/internal/models"
	"github.com/example/bloodlink/internal/utils"
	"github.com/example/bloodlink/internal/validation"
)

func TestForgotPasswordUnknownPhone(t *testing.T) {
	f := newFixture(t)

	_, err := f.donors.ForgotPassword(context.Background(), "9000000099")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.donors.ForgotPassword(context.Background(), "12")
	assert.ErrorIs(t, err, ErrBadRequest)
}

func TestForgotPasswordSendsCode(t *testing.T) {
	f := newFixture(t)
	f.register(t, "9000000001", models.APositive, 12.97, 77.59)

	res, err := f.donors.ForgotPassword(context.Background(), "9000000001")
	require.NoError(t, err)
	assert.Equal(t, "pending", res.Status)
}

func TestResetPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	donor := f.register(t, "9000000001", models.APositive, 12.97, 77.59)

	_, err := f.donors.ResetPassword(ctx, ResetPasswordInput{Phone: "9000000001", OTP: "000000", Password: "newpass1"})
	assert.ErrorIs(t, err, ErrBadRequest)

	res, err := f.donors.ResetPassword(ctx, ResetPasswordInput{Phone: "9000000001", OTP: DevOTPCode, Password: "newpass1"})
	require.NoError(t, err)
	assert.Equal(t, donor.ID, res.Donor.ID)
	assert.NotEmpty(t, res.Token)

	_, err = f.donors.Login(ctx, "9000000001", "secret1")
	assert.ErrorIs(t, err, ErrUnauthorized)

	stored, err := f.donors.GetDonor(ctx, donor.ID)
	require.NoError(t, err)
	assert.True(t, utils.CheckPassword(stored.PasswordHash, "newpass1"))
}

func TestResetPasswordValidatesInput(t *testing.T) {
	f := newFixture(t)

	_, err := f.donors.ResetPassword(context.Background(), ResetPasswordInput{Phone: "9000000001", OTP: DevOTPCode, Password: "abc"})
	verrs, ok := validation.AsErrors(err)
	require.True(t, ok)
	assert.Contains(t, verrs.Fields, "password")
}
