package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/coursehub-api/config"
	"github.com/sahilchouksey/coursehub-api/database"
	"github.com/sahilchouksey/coursehub-api/handlers"
	admin_handlers "github.com/sahilchouksey/coursehub-api/handlers/admin"
	auth_handlers "github.com/sahilchouksey/coursehub-api/handlers/auth"
	certificate_handlers "github.com/sahilchouksey/coursehub-api/handlers/certificate"
	course_handlers "github.com/sahilchouksey/coursehub-api/handlers/course"
	payment_handlers "github.com/sahilchouksey/coursehub-api/handlers/payment"
	progress_handlers "github.com/sahilchouksey/coursehub-api/handlers/progress"
	"github.com/sahilchouksey/coursehub-api/utils"
	"github.com/sahilchouksey/coursehub-api/utils/middleware"
)

func SetupRoutes(app *fiber.App, store database.Storage, svc *Services, env *config.EnviornmentVariable) {
	db := svc.DB

	// Initialize brute force protection (no-op without Redis)
	bruteForceProtection := middleware.NewBruteForceProtection(svc.Cache)

	// Initialize auth middleware with DB for blacklist checking
	authMiddleware := middleware.NewAuthMiddleware(svc.JWT, db)

	authHandler := auth_handlers.NewAuthHandler(svc.Users, svc.OTP, svc.JWT, svc.Blacklist, bruteForceProtection)
	courseHandler := course_handlers.NewCourseHandler(db, svc.Catalog, svc.Media)
	videoHandler := course_handlers.NewVideoHandler(db, svc.Catalog, svc.Media)
	tagHandler := course_handlers.NewTagHandler(db)
	paymentHandler := payment_handlers.NewPaymentHandler(db, svc.Checkout, svc.Refunds, svc.Invoices)
	progressHandler := progress_handlers.NewProgressHandler(svc.Progress, svc.Catalog)
	certificateHandler := certificate_handlers.NewCertificateHandler(svc.Issuer, svc.Certificates)

	// Apply security middleware
	middleware.SetupSecurity(app, middleware.SecurityConfig{
		AllowedOrigins:    env.ALLOWED_ORIGINS,
		RateLimitRequests: 100,             // 100 requests
		RateLimitWindow:   1 * time.Minute, // per minute
	})

	// Health check endpoint (public)
	app.Get("/ping", utils.MakeHTTPHandleFunc(handlers.HandleCheckHealth, store))

	// DASH manifests, thumbnails and documents stored on local disk
	app.Static("/public", env.MEDIA_ROOT)

	// API v1 group
	api := app.Group("/api/v1")

	// ==================== Authentication ====================

	// Login routes are registered before the guarded /user and /admin groups
	api.Post("/user/login", bruteForceProtection.CheckAndRecordAttempt(), authHandler.UserLogin)
	api.Post("/user/verify-otp", bruteForceProtection.CheckAndRecordAttempt(), authHandler.UserVerifyOTP)
	api.Post("/user/resend-otp", authHandler.ResendOTP)
	api.Post("/admin/login", bruteForceProtection.CheckAndRecordAttempt(), authHandler.AdminLogin)
	api.Post("/admin/verify-otp", bruteForceProtection.CheckAndRecordAttempt(), authHandler.AdminVerifyOTP)
	api.Post("/admin/resend-otp", authHandler.ResendOTP)

	authGroup := api.Group("/auth")
	authGroup.Post("/refresh", authHandler.RefreshToken)
	authGroup.Post("/logout", authMiddleware.Required(), authHandler.Logout)
	authGroup.Post("/change-password", authMiddleware.RequireAdmin(), authHandler.ChangePassword)

	// Profile routes (protected)
	profileGroup := api.Group("/profile", authMiddleware.Required())
	profileGroup.Get("/", authHandler.GetProfile)
	profileGroup.Put("/", authHandler.UpdateProfile)

	// ==================== Catalog (public) ====================

	courses := api.Group("/courses")
	courses.Get("/", courseHandler.PublishedCourses)
	courses.Get("/:id", courseHandler.PublishedCourse)
	courses.Get("/:id/chapters", courseHandler.Chapters)
	courses.Get("/:id/recommendations", courseHandler.Recommendations)
	courses.Post("/:id/enroll", authMiddleware.Required(), paymentHandler.EnrollFree) // Protected: free courses only

	api.Get("/tags", tagHandler.ListActiveTags)

	// ==================== Checkout ====================

	payments := api.Group("/payments", authMiddleware.Required())
	payments.Post("/orders", paymentHandler.CreateOrder)
	payments.Post("/verify", paymentHandler.VerifyPayment)
	payments.Get("/purchases", paymentHandler.MyPurchases)
	payments.Get("/purchases/:id/invoice", paymentHandler.InvoicePreview)

	// ==================== Learner ====================

	user := api.Group("/user", authMiddleware.Required())
	user.Get("/courses", paymentHandler.MyCourses)
	user.Get("/courses/:courseId", progressHandler.CourseDetails)
	user.Post("/video-progress", progressHandler.UpdateProgress)
	user.Get("/certificates", certificateHandler.ListCertificates)
	user.Post("/certificates", certificateHandler.IssueCertificate)
	user.Get("/certificates/:id/preview", certificateHandler.PreviewCertificate)

	// ==================== Admin ====================

	admin := api.Group("/admin", authMiddleware.RequireAdmin())

	// Dashboard & analytics
	admin.Get("/dashboard", utils.MakeHTTPHandleFunc(admin_handlers.GetDashboard, store))
	admin.Get("/analytics/sales", utils.MakeHTTPHandleFunc(admin_handlers.GetSalesAnalytics, store))
	admin.Get("/analytics/top-courses", utils.MakeHTTPHandleFunc(admin_handlers.GetTopCourses, store))
	admin.Get("/analytics/courses/:id", utils.MakeHTTPHandleFunc(admin_handlers.GetCourseAnalytics, store))

	// Courses
	admin.Get("/courses", courseHandler.ListCourses)
	admin.Post("/courses", middleware.AdminAuditLog(db, "course_create", "courses"), courseHandler.CreateCourse)
	admin.Get("/courses/:id", courseHandler.GetCourse)
	admin.Put("/courses/:id", middleware.AdminAuditLog(db, "course_update", "courses"), courseHandler.UpdateCourse)
	admin.Post("/courses/:id/thumbnail", courseHandler.UploadThumbnail)
	admin.Patch("/courses/:id/toggle", middleware.AdminAuditLog(db, "course_toggle", "courses"), courseHandler.ToggleCourse)
	admin.Delete("/courses/:id", middleware.AdminAuditLog(db, "course_delete", "courses"), courseHandler.DeleteCourse)
	admin.Get("/courses/:id/learners", courseHandler.CourseLearners)
	admin.Get("/courses/:id/videos", videoHandler.CourseVideos)

	// Videos (/videos/order before /videos/:id)
	admin.Get("/videos", videoHandler.ListVideos)
	admin.Post("/videos", middleware.AdminAuditLog(db, "video_upload", "videos"), videoHandler.UploadVideo)
	admin.Put("/videos/order", videoHandler.ReorderVideos)
	admin.Put("/videos/:id", videoHandler.UpdateVideo)
	admin.Patch("/videos/:id/toggle", videoHandler.ToggleVideo)
	admin.Delete("/videos/:id", middleware.AdminAuditLog(db, "video_delete", "videos"), videoHandler.DeleteVideo)

	// Tags
	admin.Get("/tags", tagHandler.ListTags)
	admin.Post("/tags", tagHandler.CreateTag)
	admin.Put("/tags/:id", tagHandler.UpdateTag)
	admin.Patch("/tags/:id/toggle", tagHandler.ToggleTag)
	admin.Delete("/tags/:id", tagHandler.DeleteTag)

	// Orders, purchases & refunds
	admin.Post("/payments/skip", middleware.AdminAuditLog(db, "skip_order", "purchases"), paymentHandler.SkipOrder)
	admin.Get("/orders", paymentHandler.ListOrders)
	admin.Get("/orders/:id", paymentHandler.GetOrder)
	admin.Get("/purchases", paymentHandler.ListPurchases)
	admin.Get("/purchases/:id/invoice", paymentHandler.InvoicePreview)
	admin.Patch("/purchases/:id/toggle", middleware.AdminAuditLog(db, "purchase_toggle", "purchases"), paymentHandler.TogglePurchase)
	admin.Delete("/purchases/:id", middleware.AdminAuditLog(db, "purchase_delete", "purchases"), paymentHandler.DeletePurchase)
	admin.Get("/refunds", paymentHandler.ListRefunds)
	admin.Post("/refunds/:transactionId", middleware.AdminAuditLog(db, "refund", "purchases"), paymentHandler.Refund)

	// Users
	admin.Get("/users/stats", utils.MakeHTTPHandleFunc(admin_handlers.GetUserStats, store))
	admin.Get("/users", utils.MakeHTTPHandleFunc(admin_handlers.ListUsers, store))
	admin.Get("/users/:id", utils.MakeHTTPHandleFunc(admin_handlers.GetUser, store))
	admin.Get("/users/:id/enrollments", paymentHandler.UserEnrollments)
	admin.Patch("/users/:id/toggle", middleware.AdminAuditLog(db, "user_toggle", "users"), utils.MakeHTTPHandleFunc(admin_handlers.ToggleUser, store))
	admin.Delete("/users/:id", middleware.AdminAuditLog(db, "user_delete", "users"), utils.MakeHTTPHandleFunc(admin_handlers.DeleteUser, store))

	// Audit & cron logs
	admin.Get("/audit", utils.MakeHTTPHandleFunc(admin_handlers.ListAuditLogs, store))
	admin.Get("/audit/:id", utils.MakeHTTPHandleFunc(admin_handlers.GetAuditLog, store))
	admin.Get("/cron-logs", utils.MakeHTTPHandleFunc(admin_handlers.ListCronJobLogs, store))
}
