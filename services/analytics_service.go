package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sahilchouksey/coursehub-api/model"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AnalyticsService handles analytics and reporting
type AnalyticsService struct {
	db *gorm.DB
}

// NewAnalyticsService creates a new analytics service
func NewAnalyticsService(db *gorm.DB) *AnalyticsService {
	return &AnalyticsService{
		db: db,
	}
}

// DashboardStats represents overall platform statistics
type DashboardStats struct {
	TotalCourses        int64           `json:"total_courses"`
	ActiveCourses       int64           `json:"active_courses"`
	TotalVideos         int64           `json:"total_videos"`
	TotalUsers          int64           `json:"total_users"`
	NewUsersToday       int64           `json:"new_users_today"`
	TotalEnrollments    int64           `json:"total_enrollments"`
	CompletedCourses    int64           `json:"completed_courses"`
	SuccessfulPurchases int64           `json:"successful_purchases"`
	FailedPayments      int64           `json:"failed_payments"`
	Refunds             int64           `json:"refunds"`
	GrossRevenue        decimal.Decimal `json:"gross_revenue"`
	RefundedAmount      decimal.Decimal `json:"refunded_amount"`
	NetRevenue          decimal.Decimal `json:"net_revenue"`
	CertificatesIssued  int64           `json:"certificates_issued"`
	PendingTasks        int64           `json:"pending_fulfillment_tasks"`
	FailedTasks         int64           `json:"failed_fulfillment_tasks"`
}

type sumResult struct {
	Total decimal.Decimal
}

// GetDashboardStats retrieves overall platform statistics
func (s *AnalyticsService) GetDashboardStats(ctx context.Context) (*DashboardStats, error) {
	stats := &DashboardStats{}
	db := s.db.WithContext(ctx)

	counts := []struct {
		name  string
		query *gorm.DB
		dest  *int64
	}{
		{"courses", db.Model(&model.Course{}), &stats.TotalCourses},
		{"active courses", db.Model(&model.Course{}).Where("active = ?", true), &stats.ActiveCourses},
		{"videos", db.Model(&model.Video{}), &stats.TotalVideos},
		{"users", db.Model(&model.User{}).Where("role = ?", model.RoleStudent), &stats.TotalUsers},
		{"new users", db.Model(&model.User{}).Where("role = ? AND created_at >= ?", model.RoleStudent, startOfDay(time.Now())), &stats.NewUsersToday},
		{"enrollments", db.Model(&model.Enrollment{}), &stats.TotalEnrollments},
		{"completed courses", db.Model(&model.Enrollment{}).Where("completed_course_status = ?", true), &stats.CompletedCourses},
		{"purchases", db.Model(&model.CoursePurchase{}).Where("status = ?", model.PurchaseStatusSuccess), &stats.SuccessfulPurchases},
		{"failed payments", db.Model(&model.CoursePurchase{}).Where("status = ?", model.PurchaseStatusFailure), &stats.FailedPayments},
		{"refunds", db.Model(&model.CoursePurchase{}).Where("refund_status = ?", true), &stats.Refunds},
		{"certificates", db.Model(&model.Certificate{}), &stats.CertificatesIssued},
		{"pending tasks", db.Model(&model.FulfillmentTask{}).Where("status = ?", model.TaskStatusPending), &stats.PendingTasks},
		{"failed tasks", db.Model(&model.FulfillmentTask{}).Where("status = ?", model.TaskStatusFailed), &stats.FailedTasks},
	}
	for _, c := range counts {
		if err := c.query.Count(c.dest).Error; err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", c.name, err)
		}
	}

	// Gross revenue
	var gross sumResult
	if err := db.Model(&model.CoursePurchase{}).
		Where("status = ? AND active = ?", model.PurchaseStatusSuccess, true).
		Select("COALESCE(SUM(total_paid_amount), 0) as total").
		Scan(&gross).Error; err != nil {
		return nil, fmt.Errorf("failed to calculate revenue: %w", err)
	}

	// Refunded amount
	var refunded sumResult
	if err := db.Model(&model.CoursePurchase{}).
		Where("status = ? AND active = ? AND refund_status = ?", model.PurchaseStatusSuccess, true, true).
		Select("COALESCE(SUM(refund_amount), 0) as total").
		Scan(&refunded).Error; err != nil {
		return nil, fmt.Errorf("failed to calculate refunds: %w", err)
	}

	stats.GrossRevenue = gross.Total
	stats.RefundedAmount = refunded.Total
	stats.NetRevenue = NetRevenue(gross.Total, refunded.Total)
	return stats, nil
}

// NetRevenue is gross revenue minus refunds, never below zero
func NetRevenue(gross, refunded decimal.Decimal) decimal.Decimal {
	net := gross.Sub(refunded)
	if net.IsNegative() {
		return decimal.Zero
	}
	return net.Round(2)
}

// CourseStats represents statistics for a specific course
type CourseStats struct {
	CourseID          uint            `json:"course_id"`
	CourseName        string          `json:"course_name"`
	Enrollments       int64           `json:"enrollments"`
	Completed         int64           `json:"completed"`
	AvgCompletion     float64         `json:"avg_completion"`
	Revenue           decimal.Decimal `json:"revenue"`
	Refunds           int64           `json:"refunds"`
	CertificatesCount int64           `json:"certificates"`
}

// GetCourseStats retrieves statistics for a specific course
func (s *AnalyticsService) GetCourseStats(ctx context.Context, courseID uint) (*CourseStats, error) {
	db := s.db.WithContext(ctx)
	stats := &CourseStats{CourseID: courseID}

	var course model.Course
	if err := db.First(&course, courseID).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch course: %w", err)
	}
	stats.CourseName = course.Name

	if err := db.Model(&model.Enrollment{}).Where("course_id = ?", courseID).Count(&stats.Enrollments).Error; err != nil {
		return nil, fmt.Errorf("failed to count enrollments: %w", err)
	}

	if err := db.Model(&model.Enrollment{}).
		Where("course_id = ? AND completed_course_status = ?", courseID, true).
		Count(&stats.Completed).Error; err != nil {
		return nil, fmt.Errorf("failed to count completions: %w", err)
	}

	// Average completion
	var avg struct {
		Avg float64
	}
	if err := db.Model(&model.Enrollment{}).
		Where("course_id = ?", courseID).
		Select("COALESCE(AVG(percentage_completed), 0) as avg").
		Scan(&avg).Error; err != nil {
		return nil, fmt.Errorf("failed to calculate completion: %w", err)
	}
	stats.AvgCompletion = roundPercent(avg.Avg)

	var revenue sumResult
	if err := db.Model(&model.CoursePurchase{}).
		Where("course_id = ? AND status = ? AND active = ?", courseID, model.PurchaseStatusSuccess, true).
		Select("COALESCE(SUM(total_paid_amount), 0) - COALESCE(SUM(refund_amount), 0) as total").
		Scan(&revenue).Error; err != nil {
		return nil, fmt.Errorf("failed to calculate revenue: %w", err)
	}
	stats.Revenue = NetRevenue(revenue.Total, decimal.Zero)

	if err := db.Model(&model.CoursePurchase{}).
		Where("course_id = ? AND refund_status = ?", courseID, true).
		Count(&stats.Refunds).Error; err != nil {
		return nil, fmt.Errorf("failed to count refunds: %w", err)
	}

	if err := db.Model(&model.Certificate{}).Where("course_id = ?", courseID).Count(&stats.CertificatesCount).Error; err != nil {
		return nil, fmt.Errorf("failed to count certificates: %w", err)
	}

	return stats, nil
}

// TimeSeriesPoint represents a data point in time series
type TimeSeriesPoint struct {
	Date  string          `json:"date"`
	Count int64           `json:"count"`
	Value decimal.Decimal `json:"value"`
}

// GetSalesTimeSeries returns successful purchases and revenue per day
func (s *AnalyticsService) GetSalesTimeSeries(ctx context.Context, days int) ([]TimeSeriesPoint, error) {
	startDate := startOfDay(time.Now().AddDate(0, 0, -days))

	var results []TimeSeriesPoint
	if err := s.db.WithContext(ctx).Model(&model.CoursePurchase{}).
		Select("TO_CHAR(DATE(transaction_date), 'YYYY-MM-DD') as date, COUNT(*) as count, COALESCE(SUM(total_paid_amount), 0) as value").
		Where("status = ? AND transaction_date >= ?", model.PurchaseStatusSuccess, startDate).
		Group("DATE(transaction_date)").
		Order("date ASC").
		Scan(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch sales: %w", err)
	}

	return results, nil
}

// TopCourse represents a best selling course
type TopCourse struct {
	CourseID    uint            `json:"course_id"`
	CourseName  string          `json:"course_name"`
	Enrollments int64           `json:"enrollments"`
	Revenue     decimal.Decimal `json:"revenue"`
}

// GetTopCourses retrieves the courses with the most successful purchases
func (s *AnalyticsService) GetTopCourses(ctx context.Context, limit int) ([]TopCourse, error) {
	var results []TopCourse

	if err := s.db.WithContext(ctx).Model(&model.Course{}).
		Select(`
			courses.id as course_id,
			courses.cname as course_name,
			COUNT(DISTINCT course_purchases.id) as enrollments,
			COALESCE(SUM(course_purchases.total_paid_amount), 0) as revenue
		`).
		Joins("LEFT JOIN course_purchases ON courses.id = course_purchases.course_id AND course_purchases.status = ? AND course_purchases.deleted_at IS NULL", model.PurchaseStatusSuccess).
		Group("courses.id, courses.cname").
		Order("enrollments DESC").
		Limit(limit).
		Scan(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch top courses: %w", err)
	}

	return results, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func roundPercent(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}
