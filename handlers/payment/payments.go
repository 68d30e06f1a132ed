package payment

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/coursehub-api/services"
	"github.com/sahilchouksey/coursehub-api/utils/middleware"
	"github.com/sahilchouksey/coursehub-api/utils/response"
)

// CreateOrder handles POST /api/v1/payments/orders
func (h *PaymentHandler) CreateOrder(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok || user == nil {
		return response.Unauthorized(c, "User not authenticated")
	}

	var req services.CreateOrderInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	// Only admins may open an order on behalf of someone else
	if !user.IsAdmin() || req.UserID == 0 {
		req.UserID = user.ID
	}

	result, err := h.checkout.CreateOrder(c.UserContext(), req)
	if err != nil {
		return paymentError(c, err)
	}

	return response.CreatedWithMessage(c, "Order created successfully", result)
}

// VerifyPayment handles POST /api/v1/payments/verify
func (h *PaymentHandler) VerifyPayment(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok || user == nil {
		return response.Unauthorized(c, "User not authenticated")
	}

	var req services.VerifyPaymentInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	// customer details are checked after the signature
	if err := h.validator.ValidateExcept(req, "Customer"); err != nil {
		return response.ValidationError(c, err)
	}

	req.UserID = user.ID
	if user.IsAdmin() && req.Customer.UserID != 0 {
		req.UserID = req.Customer.UserID
	}

	result, err := h.checkout.VerifyPayment(c.UserContext(), req)
	if err != nil {
		return paymentError(c, err)
	}

	message := "Payment verified successfully"
	if result.Replayed {
		message = "Payment already verified"
	}
	return response.SuccessWithMessage(c, message, result)
}

// SkipOrder handles POST /api/v1/admin/payments/skip
func (h *PaymentHandler) SkipOrder(c *fiber.Ctx) error {
	var req services.SkipOrderInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	result, err := h.checkout.CreateSkipOrder(c.UserContext(), req)
	if err != nil {
		return paymentError(c, err)
	}

	return response.CreatedWithMessage(c, "Course granted successfully", result)
}

// EnrollFree handles POST /api/v1/courses/:id/enroll for courses without a price
func (h *PaymentHandler) EnrollFree(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	courseID, err := c.ParamsInt("id")
	if err != nil || courseID < 1 {
		return response.BadRequest(c, "Invalid course ID")
	}

	enrollment, err := h.checkout.EnrollFree(c.UserContext(), userID, uint(courseID))
	if err != nil {
		return paymentError(c, err)
	}

	return response.CreatedWithMessage(c, "Enrolled successfully", enrollment)
}
