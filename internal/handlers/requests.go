package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/bloodlink/internal/services"
	"github.com/example/bloodlink/internal/utils"
)

// RequestHandler bundles dependencies for blood request endpoints.
type RequestHandler struct {
	requests *services.RequestService
}

// NewRequestHandler constructs a RequestHandler.
func NewRequestHandler(requests *services.RequestService) *RequestHandler {
	return &RequestHandler{requests: requests}
}

// Create records a new blood request for the caller.
func (h *RequestHandler) Create(c *fiber.Ctx) error {
	me, err := currentDonor(c)
	if err != nil {
		return err
	}

	var req services.CreateRequestInput
	if err := parseBody(c, &req); err != nil {
		return err
	}

	created, err := h.requests.Create(c.UserContext(), me, req)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusCreated, created)
}

// List returns requests with optional bloodType/status filters.
func (h *RequestHandler) List(c *fiber.Ctx) error {
	page := utils.ParsePagination(c)
	result, err := h.requests.List(c.UserContext(), services.ListInput{
		BloodType: c.Query("bloodType"),
		Status:    c.Query("status"),
		Page:      page,
	})
	if err != nil {
		return err
	}
	return respondList(c, result.Items, fiber.Map{"total": result.Total, "page": page.Page, "limit": page.Limit})
}

// ListMine returns the requests the caller created.
func (h *RequestHandler) ListMine(c *fiber.Ctx) error {
	me, err := currentDonor(c)
	if err != nil {
		return err
	}

	page := utils.ParsePagination(c)
	result, err := h.requests.ListByRequester(c.UserContext(), me.ID, page)
	if err != nil {
		return err
	}
	return respondList(c, result.Items, fiber.Map{"total": result.Total, "page": page.Page, "limit": page.Limit})
}

// Status looks requests up by contact phone.
func (h *RequestHandler) Status(c *fiber.Ctx) error {
	items, err := h.requests.StatusLookup(c.UserContext(), c.Query("phone"), c.Query("bloodType"))
	if err != nil {
		return err
	}
	return respondList(c, items, nil)
}

// Get returns a request by ID.
func (h *RequestHandler) Get(c *fiber.Ctx) error {
	req, err := h.requests.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, req)
}

// Update edits a request owned by the caller.
func (h *RequestHandler) Update(c *fiber.Ctx) error {
	me, err := currentDonor(c)
	if err != nil {
		return err
	}

	var in services.RequestUpdate
	if err := parseBody(c, &in); err != nil {
		return err
	}

	req, err := h.requests.Update(c.UserContext(), me, c.Params("id"), in)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, req)
}

// Delete removes a request owned by the caller.
func (h *RequestHandler) Delete(c *fiber.Ctx) error {
	me, err := currentDonor(c)
	if err != nil {
		return err
	}

	if err := h.requests.Delete(c.UserContext(), me, c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    fiber.Map{},
		"message": "Blood request removed",
	})
}

// NotifyDonor texts one donor about the request.
func (h *RequestHandler) NotifyDonor(c *fiber.Ctx) error {
	me, err := currentDonor(c)
	if err != nil {
		return err
	}

	req, result, err := h.requests.NotifyDonor(c.UserContext(), me, c.Params("id"), c.Params("donorId"))
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, fiber.Map{
		"request": req,
		"sms":     result,
	})
}

type decisionRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

// Respond records the caller's accepted/rejected decision.
func (h *RequestHandler) Respond(c *fiber.Ctx) error {
	me, err := currentDonor(c)
	if err != nil {
		return err
	}

	var in decisionRequest
	if err := parseBody(c, &in); err != nil {
		return err
	}

	req, err := h.requests.Respond(c.UserContext(), me, c.Params("id"), in.Status, in.Notes)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, req)
}

// UpdateDonationStatus records a decision on behalf of a donor.
func (h *RequestHandler) UpdateDonationStatus(c *fiber.Ctx) error {
	me, err := currentDonor(c)
	if err != nil {
		return err
	}

	var in decisionRequest
	if err := parseBody(c, &in); err != nil {
		return err
	}

	req, err := h.requests.UpdateDonationStatus(c.UserContext(), me, c.Params("id"), c.Params("donorId"), in.Status, in.Notes)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, req)
}

// Match finds compatible donors near the request.
func (h *RequestHandler) Match(c *fiber.Ctx) error {
	me, err := currentDonor(c)
	if err != nil {
		return err
	}

	donors, err := h.requests.MatchDonors(c.UserContext(), me, c.Params("id"), c.Query("radius"))
	if err != nil {
		return err
	}
	return respondList(c, donors, nil)
}
