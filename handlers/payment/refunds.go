package payment

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/coursehub-api/utils/response"
)

// RefundRequest is the body of a refund
type RefundRequest struct {
	RefundAmount float64 `json:"refund_amount" validate:"required,gt=0"`
}

// Refund handles POST /api/v1/admin/refunds/:transactionId
func (h *PaymentHandler) Refund(c *fiber.Ctx) error {
	transactionID := c.Params("transactionId")
	if transactionID == "" {
		return response.BadRequest(c, "Transaction ID is required")
	}

	var req RefundRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	result, err := h.refunds.Refund(c.UserContext(), transactionID, req.RefundAmount)
	if err != nil {
		return paymentError(c, err)
	}

	return response.SuccessWithMessage(c, "Refund processed successfully", result)
}
