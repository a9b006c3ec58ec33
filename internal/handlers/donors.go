package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/example/bloodlink/internal/services"
)

// DonorHandler bundles dependencies for donor endpoints.
type DonorHandler struct {
	donors   *services.DonorService
	requests *services.RequestService
}

// NewDonorHandler constructs a DonorHandler.
func NewDonorHandler(donors *services.DonorService, requests *services.RequestService) *DonorHandler {
	return &DonorHandler{donors: donors, requests: requests}
}

// Register creates a new donor account.
func (h *DonorHandler) Register(c *fiber.Ctx) error {
	var req services.RegisterInput
	if err := parseBody(c, &req); err != nil {
		return err
	}

	res, err := h.donors.Register(c.UserContext(), req)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusCreated, authPayload{Donor: res.Donor, Token: res.Token})
}

type loginRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// Login authenticates an existing donor.
func (h *DonorHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	res, err := h.donors.Login(c.UserContext(), req.Phone, req.Password)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, authPayload{Donor: res.Donor, Token: res.Token})
}

// GetProfile returns the caller's own record.
func (h *DonorHandler) GetProfile(c *fiber.Ctx) error {
	me, err := currentDonor(c)
	if err != nil {
		return err
	}

	donor, err := h.donors.GetDonor(c.UserContext(), me.ID)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, donor)
}

// UpdateProfile merges the provided fields into the caller's record.
func (h *DonorHandler) UpdateProfile(c *fiber.Ctx) error {
	me, err := currentDonor(c)
	if err != nil {
		return err
	}

	var req services.DonorUpdate
	if err := parseBody(c, &req); err != nil {
		return err
	}

	res, err := h.donors.UpdateProfile(c.UserContext(), me.ID, req)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, authPayload{Donor: res.Donor, Token: res.Token})
}

// ListDonors returns all donors, optionally filtered by blood type.
func (h *DonorHandler) ListDonors(c *fiber.Ctx) error {
	donors, err := h.donors.ListDonors(c.UserContext(), c.Query("bloodType"))
	if err != nil {
		return err
	}
	return respondList(c, donors, nil)
}

// GetDonor returns one donor by ID.
func (h *DonorHandler) GetDonor(c *fiber.Ctx) error {
	donor, err := h.donors.GetDonor(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, donor)
}

// Nearby finds available donors close to a point. Coordinates come from
// lat/lng or from location=lat,lng.
func (h *DonorHandler) Nearby(c *fiber.Ctx) error {
	in := services.NearbyInput{
		Latitude:  c.Query("lat", c.Query("latitude")),
		Longitude: c.Query("lng", c.Query("longitude")),
		RadiusKm:  c.Query("radius", c.Query("distance")),
		BloodType: c.Query("bloodType"),
	}
	if loc := c.Query("location"); loc != "" && in.Latitude == "" && in.Longitude == "" {
		if lat, lng, ok := strings.Cut(loc, ","); ok {
			in.Latitude, in.Longitude = lat, lng
		}
	}

	donors, err := h.donors.NearbyDonors(c.UserContext(), in)
	if err != nil {
		return err
	}
	return respondList(c, donors, nil)
}

// GetDonations returns the caller's donation history.
func (h *DonorHandler) GetDonations(c *fiber.Ctx) error {
	me, err := currentDonor(c)
	if err != nil {
		return err
	}

	donations, err := h.donors.GetDonations(c.UserContext(), me.ID)
	if err != nil {
		return err
	}
	return respondList(c, donations, nil)
}

// AddDonation appends to the caller's donation history.
func (h *DonorHandler) AddDonation(c *fiber.Ctx) error {
	me, err := currentDonor(c)
	if err != nil {
		return err
	}

	var req services.DonationInput
	if err := parseBody(c, &req); err != nil {
		return err
	}

	donation, err := h.donors.AddDonation(c.UserContext(), me.ID, req)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusCreated, donation)
}

// UpdateDonor is the admin edit of any donor.
func (h *DonorHandler) UpdateDonor(c *fiber.Ctx) error {
	var req services.DonorUpdate
	if err := parseBody(c, &req); err != nil {
		return err
	}

	donor, err := h.donors.AdminUpdate(c.UserContext(), c.Params("id"), req)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, donor)
}

// DeleteDonor is the admin hard delete.
func (h *DonorHandler) DeleteDonor(c *fiber.Ctx) error {
	if err := h.donors.DeleteDonor(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    fiber.Map{},
		"message": "Donor removed",
	})
}

// DonorRequests lists the requests a donor has been linked to. Donors may
// only see their own unless they are admins.
func (h *DonorHandler) DonorRequests(c *fiber.Ctx) error {
	me, err := currentDonor(c)
	if err != nil {
		return err
	}
	donorID := c.Params("donorId")
	if me.ID != donorID && !me.IsAdmin {
		return fiber.NewError(fiber.StatusForbidden, "Not authorized to view these requests")
	}

	requests, err := h.donors.DonorRequests(c.UserContext(), donorID)
	if err != nil {
		return err
	}
	return respondList(c, requests, nil)
}

// UpdateRequestStatus records a donor's decision from the donor side.
func (h *DonorHandler) UpdateRequestStatus(c *fiber.Ctx) error {
	me, err := currentDonor(c)
	if err != nil {
		return err
	}

	req, err := h.requests.UpdateDonationStatus(c.UserContext(), me, c.Params("requestId"), c.Params("donorId"), c.Params("status"), "")
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, req)
}
