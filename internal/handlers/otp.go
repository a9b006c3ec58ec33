package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/example/bloodlink/internal/services"
)

// OTPHandler exposes phone verification.
type OTPHandler struct {
	sms services.SMSGateway
}

// NewOTPHandler constructs an OTPHandler.
func NewOTPHandler(sms services.SMSGateway) *OTPHandler {
	return &OTPHandler{sms: sms}
}

type otpRequest struct {
	Phone string `json:"phone"`
	OTP   string `json:"otp"`
}

// Send starts a verification for the phone.
func (h *OTPHandler) Send(c *fiber.Ctx) error {
	var req otpRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if strings.TrimSpace(req.Phone) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Phone number is required")
	}

	res := h.sms.SendOTP(c.UserContext(), req.Phone)
	if !res.Success {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"success": false,
			"error":   res.Message,
		})
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": res.Message,
		"data":    fiber.Map{"sid": res.SID, "status": res.Status},
	})
}

// Verify checks a code for the phone.
func (h *OTPHandler) Verify(c *fiber.Ctx) error {
	var req otpRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if strings.TrimSpace(req.Phone) == "" || strings.TrimSpace(req.OTP) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Phone number and OTP are required")
	}

	res := h.sms.VerifyOTP(c.UserContext(), req.Phone, strings.TrimSpace(req.OTP))
	if !res.Success {
		status := fiber.StatusBadRequest
		if res.Error != "" {
			status = fiber.StatusBadGateway
		}
		return c.Status(status).JSON(fiber.Map{
			"success": false,
			"error":   res.Message,
		})
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": res.Message,
		"data":    fiber.Map{"status": res.Status},
	})
}
