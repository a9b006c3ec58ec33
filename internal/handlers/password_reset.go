package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/bloodlink/internal/services"
)

// PasswordResetHandler manages forgot-password endpoints.
type PasswordResetHandler struct {
	donors *services.DonorService
}

// NewPasswordResetHandler constructs a PasswordResetHandler.
func NewPasswordResetHandler(donors *services.DonorService) *PasswordResetHandler {
	return &PasswordResetHandler{donors: donors}
}

type forgotPasswordRequest struct {
	Phone string `json:"phone"`
}

// ForgotPassword sends a reset code to the donor's phone.
func (h *PasswordResetHandler) ForgotPassword(c *fiber.Ctx) error {
	var req forgotPasswordRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	res, err := h.donors.ForgotPassword(c.UserContext(), req.Phone)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Verification code sent",
		"data":    fiber.Map{"sid": res.SID, "status": res.Status},
	})
}

// ResetPassword sets a new password once the code checks out.
func (h *PasswordResetHandler) ResetPassword(c *fiber.Ctx) error {
	var req services.ResetPasswordInput
	if err := parseBody(c, &req); err != nil {
		return err
	}

	res, err := h.donors.ResetPassword(c.UserContext(), req)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, authPayload{Donor: res.Donor, Token: res.Token})
}
