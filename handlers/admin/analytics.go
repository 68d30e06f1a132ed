package admin

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/coursehub-api/database"
	"github.com/sahilchouksey/coursehub-api/services"
	"github.com/sahilchouksey/coursehub-api/utils/response"
	"gorm.io/gorm"
)

func analyticsService(store database.Storage) (*services.AnalyticsService, bool) {
	db, ok := store.GetDB().(*gorm.DB)
	if !ok {
		return nil, false
	}
	return services.NewAnalyticsService(db), true
}

// GetDashboard retrieves the headline numbers of the admin dashboard
// GET /admin/dashboard
func GetDashboard(c *fiber.Ctx, store database.Storage) error {
	svc, ok := analyticsService(store)
	if !ok {
		return response.InternalServerError(c, "Database connection error")
	}

	stats, err := svc.GetDashboardStats(c.UserContext())
	if err != nil {
		return response.InternalServerError(c, "Failed to fetch dashboard statistics")
	}

	return response.SuccessWithMessage(c, "Dashboard statistics retrieved successfully", stats)
}

// GetCourseAnalytics retrieves enrollment, completion and revenue of one course
// GET /admin/analytics/courses/:id
func GetCourseAnalytics(c *fiber.Ctx, store database.Storage) error {
	svc, ok := analyticsService(store)
	if !ok {
		return response.InternalServerError(c, "Database connection error")
	}

	courseID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid course ID")
	}

	stats, err := svc.GetCourseStats(c.UserContext(), uint(courseID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Course not found")
		}
		return response.InternalServerError(c, "Failed to fetch course statistics")
	}

	return response.Success(c, stats)
}

// GetSalesAnalytics retrieves daily sales of the last N days
// GET /admin/analytics/sales?days=30
func GetSalesAnalytics(c *fiber.Ctx, store database.Storage) error {
	svc, ok := analyticsService(store)
	if !ok {
		return response.InternalServerError(c, "Database connection error")
	}

	days, _ := strconv.Atoi(c.Query("days", "30"))
	if days < 1 || days > 365 {
		days = 30
	}

	series, err := svc.GetSalesTimeSeries(c.UserContext(), days)
	if err != nil {
		return response.InternalServerError(c, "Failed to fetch sales")
	}

	return response.Success(c, fiber.Map{
		"days":   days,
		"series": series,
	})
}

// GetTopCourses retrieves the best selling courses
// GET /admin/analytics/top-courses?limit=10
func GetTopCourses(c *fiber.Ctx, store database.Storage) error {
	svc, ok := analyticsService(store)
	if !ok {
		return response.InternalServerError(c, "Database connection error")
	}

	limit, _ := strconv.Atoi(c.Query("limit", "10"))
	if limit < 1 || limit > 50 {
		limit = 10
	}

	courses, err := svc.GetTopCourses(c.UserContext(), limit)
	if err != nil {
		return response.InternalServerError(c, "Failed to fetch top courses")
	}

	return response.Success(c, courses)
}
