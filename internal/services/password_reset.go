package services

import (
	"context"
	"strings"

	"github.com/example/bloodlink/internal/models"
	"github.com/example/bloodlink/internal/store"
	"github.com/example/bloodlink/internal/utils"
	"github.com/example/bloodlink/internal/validation"
)

// ResetPasswordInput completes a forgot-password flow.
type ResetPasswordInput struct {
	Phone    string `json:"phone" validate:"required,phone10"`
	OTP      string `json:"otp" validate:"required"`
	Password string `json:"password" validate:"required,min=6"`
}

// ForgotPassword sends a verification code to a registered donor's phone.
func (s *DonorService) ForgotPassword(ctx context.Context, phone string) (SMSResult, error) {
	phone = strings.TrimSpace(phone)
	if !validation.ValidPhone(phone) {
		return SMSResult{}, fail(ErrBadRequest, "Please enter a valid 10-digit phone number")
	}
	if _, err := s.findByPhone(ctx, phone); err != nil {
		return SMSResult{}, err
	}

	res := s.sms.SendOTP(ctx, phone)
	if !res.Success {
		return res, fail(ErrUpstream, res.Message)
	}
	s.log.WithField("donor_phone", phone).Info("password reset code sent")
	return res, nil
}

// ResetPassword checks the code and replaces the donor's password.
func (s *DonorService) ResetPassword(ctx context.Context, in ResetPasswordInput) (*AuthResult, error) {
	in.Phone = strings.TrimSpace(in.Phone)
	in.OTP = strings.TrimSpace(in.OTP)
	if err := validation.Check(in).Err(); err != nil {
		return nil, err
	}

	donor, err := s.findByPhone(ctx, in.Phone)
	if err != nil {
		return nil, err
	}

	res := s.sms.VerifyOTP(ctx, in.Phone, in.OTP)
	if !res.Success {
		if res.Error != "" {
			return nil, fail(ErrUpstream, res.Message)
		}
		return nil, fail(ErrBadRequest, "Invalid or expired verification code")
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	donor.PasswordHash = hash
	if err := s.donors.Update(ctx, donor); err != nil {
		return nil, err
	}

	token, err := s.tokens.Issue(donor.ID)
	if err != nil {
		return nil, err
	}
	s.log.WithField("donor_id", donor.ID).Info("password reset")
	return &AuthResult{Donor: donor, Token: token}, nil
}

func (s *DonorService) findByPhone(ctx context.Context, phone string) (*models.Donor, error) {
	donor, err := s.donors.FindByPhone(ctx, phone)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, fail(ErrNotFound, "Donor not found")
		}
		return nil, err
	}
	return donor, nil
}
