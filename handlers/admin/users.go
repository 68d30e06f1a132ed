package admin

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/coursehub-api/database"
	"github.com/sahilchouksey/coursehub-api/model"
	"github.com/sahilchouksey/coursehub-api/utils/middleware"
	"github.com/sahilchouksey/coursehub-api/utils/response"
	"gorm.io/gorm"
)

// ListUsersRequest represents the query parameters for listing users
type ListUsersRequest struct {
	Page    int    `query:"page"`
	Limit   int    `query:"limit"`
	Role    string `query:"role"`
	Search  string `query:"search"`
	Active  string `query:"active"`
	Sort    string `query:"sort"`
	SortDir string `query:"sort_dir"`
}

var sortableUserColumns = map[string]bool{
	"created_at":    true,
	"name":          true,
	"email":         true,
	"last_login_at": true,
}

// ListUsers retrieves all users with pagination and filters
// GET /admin/users
func ListUsers(c *fiber.Ctx, store database.Storage) error {
	db, ok := store.GetDB().(*gorm.DB)
	if !ok {
		return response.InternalServerError(c, "Database connection error")
	}

	var req ListUsersRequest
	if err := c.QueryParser(&req); err != nil {
		return response.BadRequest(c, "Invalid query parameters")
	}

	if req.Page < 1 {
		req.Page = 1
	}
	if req.Limit < 1 || req.Limit > 100 {
		req.Limit = 20
	}
	if !sortableUserColumns[req.Sort] {
		req.Sort = "created_at"
	}
	if req.SortDir != "asc" && req.SortDir != "desc" {
		req.SortDir = "desc"
	}

	query := db.Model(&model.User{})

	if req.Role != "" {
		query = query.Where("role = ?", req.Role)
	}
	if req.Active != "" {
		query = query.Where("active = ?", req.Active == "true")
	}

	// Search by name, email or phone
	if req.Search != "" {
		searchTerm := "%" + strings.ToLower(req.Search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR phone LIKE ?", searchTerm, searchTerm, searchTerm)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.InternalServerError(c, "Failed to count users")
	}

	var users []model.User
	offset := (req.Page - 1) * req.Limit
	if err := query.Offset(offset).Limit(req.Limit).Order(req.Sort + " " + req.SortDir).Find(&users).Error; err != nil {
		return response.InternalServerError(c, "Failed to fetch users")
	}

	return response.Paginated(c, users, response.CalculatePagination(req.Page, req.Limit, total))
}

// GetUser retrieves a user with their enrollments and purchase totals
// GET /admin/users/:id
func GetUser(c *fiber.Ctx, store database.Storage) error {
	db, ok := store.GetDB().(*gorm.DB)
	if !ok {
		return response.InternalServerError(c, "Database connection error")
	}

	userID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid user ID")
	}

	var user model.User
	if err := db.Preload("Enrollments.Course").First(&user, userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "User not found")
		}
		return response.InternalServerError(c, "Failed to fetch user")
	}

	var stats struct {
		Enrollments      int64 `json:"enrollments"`
		CompletedCourses int64 `json:"completed_courses"`
		Purchases        int64 `json:"purchases"`
		Refunds          int64 `json:"refunds"`
		Certificates     int64 `json:"certificates"`
	}
	db.Model(&model.Enrollment{}).Where("user_id = ?", userID).Count(&stats.Enrollments)
	db.Model(&model.Enrollment{}).Where("user_id = ? AND completed_course_status = ?", userID, true).Count(&stats.CompletedCourses)
	db.Model(&model.CoursePurchase{}).Where("user_id = ? AND status = ?", userID, model.PurchaseStatusSuccess).Count(&stats.Purchases)
	db.Model(&model.CoursePurchase{}).Where("user_id = ? AND refund_status = ?", userID, true).Count(&stats.Refunds)
	db.Model(&model.Certificate{}).Where("user_id = ?", userID).Count(&stats.Certificates)

	return response.SuccessWithMessage(c, "User retrieved successfully", fiber.Map{
		"user":  user,
		"stats": stats,
	})
}

// ToggleUser activates or deactivates an account. A deactivated account is
// rejected by the auth middleware on its next request.
// PATCH /admin/users/:id/toggle
func ToggleUser(c *fiber.Ctx, store database.Storage) error {
	db, ok := store.GetDB().(*gorm.DB)
	if !ok {
		return response.InternalServerError(c, "Database connection error")
	}

	userID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid user ID")
	}
	if admin, ok := middleware.GetUser(c); ok && admin.ID == uint(userID) {
		return response.BadRequest(c, "Cannot deactivate your own account")
	}

	var user model.User
	if err := db.First(&user, userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "User not found")
		}
		return response.InternalServerError(c, "Failed to fetch user")
	}

	user.Active = !user.Active
	if err := db.Model(&user).Update("active", user.Active).Error; err != nil {
		return response.InternalServerError(c, "Failed to update user")
	}

	return response.SuccessWithMessage(c, "User status updated successfully", user)
}

// DeleteUser soft deletes a user
// DELETE /admin/users/:id
func DeleteUser(c *fiber.Ctx, store database.Storage) error {
	db, ok := store.GetDB().(*gorm.DB)
	if !ok {
		return response.InternalServerError(c, "Database connection error")
	}

	userID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid user ID")
	}

	// Prevent self-deletion
	if admin, ok := middleware.GetUser(c); ok && admin.ID == uint(userID) {
		return response.BadRequest(c, "Cannot delete your own account")
	}

	var user model.User
	if err := db.First(&user, userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "User not found")
		}
		return response.InternalServerError(c, "Failed to fetch user")
	}

	if err := db.Delete(&user).Error; err != nil {
		return response.InternalServerError(c, "Failed to delete user")
	}

	return response.SuccessWithMessage(c, "User deleted successfully", fiber.Map{
		"user_id": userID,
	})
}

// GetUserStats retrieves overall user statistics
// GET /admin/users/stats
func GetUserStats(c *fiber.Ctx, store database.Storage) error {
	db, ok := store.GetDB().(*gorm.DB)
	if !ok {
		return response.InternalServerError(c, "Database connection error")
	}

	var stats struct {
		TotalUsers      int64 `json:"total_users"`
		AdminUsers      int64 `json:"admin_users"`
		StudentUsers    int64 `json:"student_users"`
		VerifiedUsers   int64 `json:"verified_users"`
		ActiveToday     int64 `json:"active_today"`
		ActiveThisWeek  int64 `json:"active_this_week"`
		EnrolledLearner int64 `json:"enrolled_learners"`
	}

	db.Model(&model.User{}).Count(&stats.TotalUsers)
	db.Model(&model.User{}).Where("role IN ?", []string{model.RoleAdmin, model.RoleSuperAdmin}).Count(&stats.AdminUsers)
	db.Model(&model.User{}).Where("role = ?", model.RoleStudent).Count(&stats.StudentUsers)
	db.Model(&model.User{}).Where("is_verified = ?", true).Count(&stats.VerifiedUsers)

	// Activity is derived from the last successful login
	db.Model(&model.User{}).Where("last_login_at >= NOW() - INTERVAL '1 day'").Count(&stats.ActiveToday)
	db.Model(&model.User{}).Where("last_login_at >= NOW() - INTERVAL '7 days'").Count(&stats.ActiveThisWeek)

	db.Model(&model.Enrollment{}).Distinct("user_id").Count(&stats.EnrolledLearner)

	return response.SuccessWithMessage(c, "User statistics retrieved successfully", stats)
}
