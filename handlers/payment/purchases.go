package payment

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/coursehub-api/model"
	"github.com/sahilchouksey/coursehub-api/utils/middleware"
	"github.com/sahilchouksey/coursehub-api/utils/response"
	"gorm.io/gorm"
)

func pagination(c *fiber.Ctx) (int, int) {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "10"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}
	return page, limit
}

// ListOrders handles GET /api/v1/admin/orders
func (h *PaymentHandler) ListOrders(c *fiber.Ctx) error {
	page, limit := pagination(c)

	query := h.db.Model(&model.Order{})
	if source := c.Query("source"); source != "" {
		query = query.Where("source = ?", source)
	}
	if completed := c.Query("completed"); completed != "" {
		query = query.Where("completed = ?", completed == "true")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.InternalServerError(c, "Failed to count orders")
	}

	var orders []model.Order
	if err := query.Preload("Course").Preload("User").
		Order("created_at DESC").
		Limit(limit).
		Offset((page - 1) * limit).
		Find(&orders).Error; err != nil {
		return response.InternalServerError(c, "Failed to fetch orders")
	}

	return response.Paginated(c, orders, response.CalculatePagination(page, limit, total))
}

// GetOrder handles GET /api/v1/admin/orders/:id
func (h *PaymentHandler) GetOrder(c *fiber.Ctx) error {
	var order model.Order
	if err := h.db.Preload("Course").Preload("User").First(&order, c.Params("id")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Order not found")
		}
		return response.InternalServerError(c, "Failed to fetch order")
	}
	return response.Success(c, order)
}

func (h *PaymentHandler) searchPurchases(c *fiber.Ctx, query *gorm.DB) error {
	page, limit := pagination(c)

	if search := strings.TrimSpace(c.Query("search")); search != "" {
		term := "%" + strings.ToLower(search) + "%"
		query = query.Where(
			"LOWER(customer_name) LIKE ? OR LOWER(customer_email) LIKE ? OR LOWER(transaction_id) LIKE ? OR LOWER(invoice_number) LIKE ? OR LOWER(course_name) LIKE ?",
			term, term, term, term, term)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.InternalServerError(c, "Failed to count purchases")
	}

	var purchases []model.CoursePurchase
	if err := query.Order("transaction_date DESC").
		Limit(limit).
		Offset((page - 1) * limit).
		Find(&purchases).Error; err != nil {
		return response.InternalServerError(c, "Failed to fetch purchases")
	}

	return response.Paginated(c, purchases, response.CalculatePagination(page, limit, total))
}

// ListPurchases handles GET /api/v1/admin/purchases?search=&status=
func (h *PaymentHandler) ListPurchases(c *fiber.Ctx) error {
	query := h.db.Model(&model.CoursePurchase{})
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if courseID := c.Query("course_id"); courseID != "" {
		query = query.Where("course_id = ?", courseID)
	}
	return h.searchPurchases(c, query)
}

// ListRefunds handles GET /api/v1/admin/refunds
func (h *PaymentHandler) ListRefunds(c *fiber.Ctx) error {
	query := h.db.Model(&model.CoursePurchase{}).Where("refund_status = ?", true)
	return h.searchPurchases(c, query)
}

// TogglePurchase handles PATCH /api/v1/admin/purchases/:id/toggle
func (h *PaymentHandler) TogglePurchase(c *fiber.Ctx) error {
	var purchase model.CoursePurchase
	if err := h.db.First(&purchase, c.Params("id")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Purchase not found")
		}
		return response.InternalServerError(c, "Failed to fetch purchase")
	}

	purchase.Active = !purchase.Active
	if err := h.db.Model(&purchase).Update("active", purchase.Active).Error; err != nil {
		return response.InternalServerError(c, "Failed to update purchase")
	}

	return response.SuccessWithMessage(c, "Purchase status updated successfully", purchase)
}

// DeletePurchase handles DELETE /api/v1/admin/purchases/:id
func (h *PaymentHandler) DeletePurchase(c *fiber.Ctx) error {
	var purchase model.CoursePurchase
	if err := h.db.First(&purchase, c.Params("id")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Purchase not found")
		}
		return response.InternalServerError(c, "Failed to fetch purchase")
	}

	if err := h.db.Delete(&purchase).Error; err != nil {
		return response.InternalServerError(c, "Failed to delete purchase")
	}

	return response.SuccessWithMessage(c, "Purchase deleted successfully", nil)
}

// UserEnrollments handles GET /api/v1/admin/users/:id/courses
func (h *PaymentHandler) UserEnrollments(c *fiber.Ctx) error {
	userID, err := c.ParamsInt("id")
	if err != nil || userID < 1 {
		return response.BadRequest(c, "Invalid user ID")
	}
	return h.enrollments(c, uint(userID))
}

// MyCourses handles GET /api/v1/user/courses
func (h *PaymentHandler) MyCourses(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}
	return h.enrollments(c, userID)
}

func (h *PaymentHandler) enrollments(c *fiber.Ctx, userID uint) error {
	var enrollments []model.Enrollment
	if err := h.db.Preload("Course").
		Where("user_id = ? AND active = ?", userID, true).
		Order("enrolled_at DESC").
		Find(&enrollments).Error; err != nil {
		return response.InternalServerError(c, "Failed to fetch enrolled courses")
	}
	return response.Success(c, enrollments)
}

// MyPurchases handles GET /api/v1/user/purchases
func (h *PaymentHandler) MyPurchases(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	var purchases []model.CoursePurchase
	if err := h.db.Where("user_id = ? AND status = ? AND active = ?", userID, model.PurchaseStatusSuccess, true).
		Order("transaction_date DESC").
		Find(&purchases).Error; err != nil {
		return response.InternalServerError(c, "Failed to fetch purchases")
	}
	return response.Success(c, purchases)
}

// InvoicePreview handles GET /api/v1/payments/purchases/:id/invoice and
// renders the invoice as HTML. Learners only see their own invoices.
func (h *PaymentHandler) InvoicePreview(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok || user == nil {
		return response.Unauthorized(c, "User not authenticated")
	}

	query := h.db.Preload("Course").Where("status = ?", model.PurchaseStatusSuccess)
	if !user.IsAdmin() {
		query = query.Where("user_id = ?", user.ID)
	}

	var purchase model.CoursePurchase
	if err := query.First(&purchase, c.Params("id")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Purchase not found")
		}
		return response.InternalServerError(c, "Failed to fetch purchase")
	}

	return c.Render("invoice", h.invoices.Build(&purchase))
}
