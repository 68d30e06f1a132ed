package course

import (
	"context"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/coursehub-api/model"
	"github.com/sahilchouksey/coursehub-api/services"
	"github.com/sahilchouksey/coursehub-api/utils/response"
	"github.com/sahilchouksey/coursehub-api/utils/validation"
	"gorm.io/gorm"
)

// Catalog serves the cached learner reads and is told about writes
type Catalog interface {
	GetCourse(ctx context.Context, id uint) (*model.Course, error)
	PublishedCourses(ctx context.Context) ([]model.Course, error)
	Recommendations(ctx context.Context, courseID uint) ([]model.Course, error)
	Invalidate(ctx context.Context, courseID uint)
}

// CourseHandler handles course-related requests
type CourseHandler struct {
	db        *gorm.DB
	catalog   Catalog
	media     MediaStore
	validator *validation.Validator
}

// NewCourseHandler creates a new course handler
func NewCourseHandler(db *gorm.DB, catalog Catalog, media MediaStore) *CourseHandler {
	return &CourseHandler{
		db:        db,
		catalog:   catalog,
		media:     media,
		validator: validation.NewValidator(),
	}
}

// CreateCourseRequest represents the request body for creating a course
type CreateCourseRequest struct {
	Name             string          `json:"cname" validate:"required,min=3,max=255,nospecial"`
	TotalVideo       int             `json:"total_video" validate:"required,min=1"`
	Learn            string          `json:"learn" validate:"omitempty,max=5000"`
	Hours            string          `json:"hours" validate:"omitempty,hhmm"`
	Author           string          `json:"author" validate:"required,max=255"`
	ShortDescription string          `json:"short_description" validate:"omitempty,max=1000"`
	LongDescription  string          `json:"long_description" validate:"omitempty,max=10000"`
	Language         string          `json:"language" validate:"required,max=50"`
	Price            float64         `json:"price" validate:"gte=0,lte=500000"`
	DiscountPrice    float64         `json:"dprice" validate:"gte=0,lte=500000"`
	CourseGST        float64         `json:"course_gst" validate:"gte=0,lte=100"`
	CourseType       string          `json:"course_type" validate:"required,max=50"`
	Percentage       float64         `json:"percentage" validate:"omitempty,gte=10,lte=100"`
	StartTime        string          `json:"start_time" validate:"omitempty,max=20"`
	EndTime          string          `json:"end_time" validate:"omitempty,max=20"`
	Thumbnail        string          `json:"thumbnail" validate:"omitempty,max=2000"`
	Sequence         int             `json:"sequence" validate:"gte=0"`
	Chapters         []model.Chapter `json:"chapters" validate:"omitempty,dive"`
}

// UpdateCourseRequest represents the request body for updating a course
type UpdateCourseRequest struct {
	Name             *string          `json:"cname" validate:"omitempty,min=3,max=255,nospecial"`
	TotalVideo       *int             `json:"total_video" validate:"omitempty,min=1"`
	Learn            *string          `json:"learn" validate:"omitempty,max=5000"`
	Hours            *string          `json:"hours" validate:"omitempty,hhmm"`
	Author           *string          `json:"author" validate:"omitempty,max=255"`
	ShortDescription *string          `json:"short_description" validate:"omitempty,max=1000"`
	LongDescription  *string          `json:"long_description" validate:"omitempty,max=10000"`
	Language         *string          `json:"language" validate:"omitempty,max=50"`
	Price            *float64         `json:"price" validate:"omitempty,gte=0,lte=500000"`
	DiscountPrice    *float64         `json:"dprice" validate:"omitempty,gte=0,lte=500000"`
	CourseGST        *float64         `json:"course_gst" validate:"omitempty,gte=0,lte=100"`
	CourseType       *string          `json:"course_type" validate:"omitempty,max=50"`
	Percentage       *float64         `json:"percentage" validate:"omitempty,gte=10,lte=100"`
	StartTime        *string          `json:"start_time" validate:"omitempty,max=20"`
	EndTime          *string          `json:"end_time" validate:"omitempty,max=20"`
	Thumbnail        *string          `json:"thumbnail" validate:"omitempty,max=2000"`
	Sequence         *int             `json:"sequence" validate:"omitempty,gte=0"`
	Chapters         *[]model.Chapter `json:"chapters" validate:"omitempty,dive"`
}

func duplicateChapter(chapters []model.Chapter) bool {
	seen := map[int]bool{}
	for _, ch := range chapters {
		if seen[ch.Number] {
			return true
		}
		seen[ch.Number] = true
	}
	return false
}

// ListCourses handles GET /api/v1/admin/courses
func (h *CourseHandler) ListCourses(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "10"))
	search := c.Query("search", "")
	active := c.Query("active", "")
	pagination := response.CalculatePagination(page, limit, 0)
	page, limit = pagination.CurrentPage, pagination.PerPage

	query := h.db.Model(&model.Course{})

	if search != "" {
		query = query.Where("cname ILIKE ? OR author ILIKE ? OR language ILIKE ?",
			"%"+search+"%", "%"+search+"%", "%"+search+"%")
	}
	if active != "" {
		query = query.Where("active = ?", active == "true")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.InternalServerError(c, "Failed to count courses")
	}

	var courses []model.Course
	if err := query.Order("sequence ASC, created_at DESC").
		Limit(limit).
		Offset((page - 1) * limit).
		Find(&courses).Error; err != nil {
		return response.InternalServerError(c, "Failed to fetch courses")
	}

	return response.Paginated(c, courses, response.CalculatePagination(page, limit, total))
}

// GetCourse handles GET /api/v1/admin/courses/:id
func (h *CourseHandler) GetCourse(c *fiber.Ctx) error {
	var course model.Course
	if err := h.db.Preload("Videos", func(db *gorm.DB) *gorm.DB {
		return db.Order("chapter ASC, sort_order ASC")
	}).First(&course, c.Params("id")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Course not found")
		}
		return response.InternalServerError(c, "Failed to fetch course")
	}

	return response.Success(c, course)
}

// CreateCourse handles POST /api/v1/admin/courses
func (h *CourseHandler) CreateCourse(c *fiber.Ctx) error {
	var req CreateCourseRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}
	if req.DiscountPrice > req.Price {
		return response.BadRequest(c, "Discount price cannot exceed the price")
	}
	if duplicateChapter(req.Chapters) {
		return response.BadRequest(c, "Chapter numbers must be unique")
	}
	if req.Percentage == 0 {
		req.Percentage = 100
	}

	course := model.Course{
		Name:             validation.SanitizeString(req.Name),
		TotalVideo:       req.TotalVideo,
		Learn:            req.Learn,
		Hours:            req.Hours,
		Author:           validation.SanitizeString(req.Author),
		ShortDescription: req.ShortDescription,
		LongDescription:  req.LongDescription,
		Language:         validation.SanitizeString(req.Language),
		Price:            req.Price,
		DiscountPrice:    req.DiscountPrice,
		CourseGST:        req.CourseGST,
		CourseType:       req.CourseType,
		Percentage:       req.Percentage,
		StartTime:        req.StartTime,
		EndTime:          req.EndTime,
		Thumbnail:        req.Thumbnail,
		Sequence:         req.Sequence,
		Active:           true,
		Chapters:         req.Chapters,
	}

	if err := h.db.Create(&course).Error; err != nil {
		return response.InternalServerError(c, "Failed to create course")
	}
	h.catalog.Invalidate(c.UserContext(), course.ID)

	return response.CreatedWithMessage(c, "Course created successfully", course)
}

// UpdateCourse handles PUT /api/v1/admin/courses/:id
func (h *CourseHandler) UpdateCourse(c *fiber.Ctx) error {
	var req UpdateCourseRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	var course model.Course
	if err := h.db.First(&course, c.Params("id")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Course not found")
		}
		return response.InternalServerError(c, "Failed to fetch course")
	}

	applyCourseUpdate(&course, req)
	if course.DiscountPrice > course.Price {
		return response.BadRequest(c, "Discount price cannot exceed the price")
	}
	if duplicateChapter(course.Chapters) {
		return response.BadRequest(c, "Chapter numbers must be unique")
	}

	if err := h.db.Save(&course).Error; err != nil {
		return response.InternalServerError(c, "Failed to update course")
	}
	h.catalog.Invalidate(c.UserContext(), course.ID)

	return response.SuccessWithMessage(c, "Course updated successfully", course)
}

func applyCourseUpdate(course *model.Course, req UpdateCourseRequest) {
	if req.Name != nil {
		course.Name = validation.SanitizeString(*req.Name)
	}
	if req.TotalVideo != nil {
		course.TotalVideo = *req.TotalVideo
	}
	if req.Learn != nil {
		course.Learn = *req.Learn
	}
	if req.Hours != nil {
		course.Hours = *req.Hours
	}
	if req.Author != nil {
		course.Author = validation.SanitizeString(*req.Author)
	}
	if req.ShortDescription != nil {
		course.ShortDescription = *req.ShortDescription
	}
	if req.LongDescription != nil {
		course.LongDescription = *req.LongDescription
	}
	if req.Language != nil {
		course.Language = validation.SanitizeString(*req.Language)
	}
	if req.Price != nil {
		course.Price = *req.Price
	}
	if req.DiscountPrice != nil {
		course.DiscountPrice = *req.DiscountPrice
	}
	if req.CourseGST != nil {
		course.CourseGST = *req.CourseGST
	}
	if req.CourseType != nil {
		course.CourseType = *req.CourseType
	}
	if req.Percentage != nil {
		course.Percentage = *req.Percentage
	}
	if req.StartTime != nil {
		course.StartTime = *req.StartTime
	}
	if req.EndTime != nil {
		course.EndTime = *req.EndTime
	}
	if req.Thumbnail != nil {
		course.Thumbnail = *req.Thumbnail
	}
	if req.Sequence != nil {
		course.Sequence = *req.Sequence
	}
	if req.Chapters != nil {
		course.Chapters = *req.Chapters
	}
}

// UploadThumbnail handles POST /api/v1/admin/courses/:id/thumbnail (multipart "thumbnail")
func (h *CourseHandler) UploadThumbnail(c *fiber.Ctx) error {
	var course model.Course
	if err := h.db.First(&course, c.Params("id")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Course not found")
		}
		return response.InternalServerError(c, "Failed to fetch course")
	}

	file, err := c.FormFile("thumbnail")
	if err != nil {
		return response.BadRequest(c, "Thumbnail file is required")
	}

	url, err := h.media.SaveFile(c.UserContext(), file, "courses/"+strconv.Itoa(int(course.ID)))
	if err != nil {
		return mediaError(c, err)
	}

	if err := h.db.Model(&course).Update("thumbnail", url).Error; err != nil {
		return response.InternalServerError(c, "Failed to update course")
	}
	h.catalog.Invalidate(c.UserContext(), course.ID)

	return response.SuccessWithMessage(c, "Thumbnail uploaded successfully", fiber.Map{"thumbnail": url})
}

// ToggleCourse handles PATCH /api/v1/admin/courses/:id/toggle
func (h *CourseHandler) ToggleCourse(c *fiber.Ctx) error {
	var course model.Course
	if err := h.db.First(&course, c.Params("id")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Course not found")
		}
		return response.InternalServerError(c, "Failed to fetch course")
	}

	course.Active = !course.Active
	if err := h.db.Model(&course).Update("active", course.Active).Error; err != nil {
		return response.InternalServerError(c, "Failed to update course")
	}
	h.catalog.Invalidate(c.UserContext(), course.ID)

	return response.SuccessWithMessage(c, "Course status updated successfully", course)
}

// DeleteCourse handles DELETE /api/v1/admin/courses/:id
func (h *CourseHandler) DeleteCourse(c *fiber.Ctx) error {
	var course model.Course
	if err := h.db.First(&course, c.Params("id")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Course not found")
		}
		return response.InternalServerError(c, "Failed to fetch course")
	}

	var enrolled int64
	if err := h.db.Model(&model.Enrollment{}).Where("course_id = ?", course.ID).Count(&enrolled).Error; err != nil {
		return response.InternalServerError(c, "Failed to check course dependencies")
	}
	if enrolled > 0 {
		return response.BadRequest(c, "Cannot delete a course with enrolled learners")
	}

	if err := h.db.Delete(&course).Error; err != nil {
		return response.InternalServerError(c, "Failed to delete course")
	}
	h.catalog.Invalidate(c.UserContext(), course.ID)

	return response.SuccessWithMessage(c, "Course deleted successfully", nil)
}

// CourseLearners handles GET /api/v1/admin/courses/:id/learners
func (h *CourseHandler) CourseLearners(c *fiber.Ctx) error {
	var enrollments []model.Enrollment
	if err := h.db.Preload("User").
		Where("course_id = ?", c.Params("id")).
		Order("enrolled_at DESC").
		Find(&enrollments).Error; err != nil {
		return response.InternalServerError(c, "Failed to fetch learners")
	}

	type learner struct {
		UserID                uint    `json:"user_id"`
		Name                  string  `json:"name"`
		Email                 string  `json:"email"`
		Phone                 string  `json:"phone"`
		PercentageCompleted   float64 `json:"percentage_completed"`
		CompletedCourseStatus bool    `json:"completed_course_status"`
	}
	out := make([]learner, 0, len(enrollments))
	for _, e := range enrollments {
		out = append(out, learner{
			UserID:                e.UserID,
			Name:                  e.User.Name,
			Email:                 e.User.Email,
			Phone:                 e.User.PhoneNumber(),
			PercentageCompleted:   e.PercentageCompleted,
			CompletedCourseStatus: e.CompletedCourseStatus,
		})
	}
	return response.Success(c, out)
}

// PublishedCourses handles GET /api/v1/courses
func (h *CourseHandler) PublishedCourses(c *fiber.Ctx) error {
	courses, err := h.catalog.PublishedCourses(c.UserContext())
	if err != nil {
		return response.InternalServerError(c, "Failed to fetch courses")
	}
	return response.Success(c, courses)
}

func (h *CourseHandler) publishedCourse(c *fiber.Ctx) (*model.Course, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return nil, response.BadRequest(c, "Invalid course ID")
	}
	course, err := h.catalog.GetCourse(c.UserContext(), uint(id))
	if err != nil {
		if errors.Is(err, services.ErrCourseNotFound) {
			return nil, response.NotFound(c, "Course not found")
		}
		return nil, response.InternalServerError(c, "Failed to fetch course")
	}
	return course, nil
}

// PublishedCourse handles GET /api/v1/courses/:id
func (h *CourseHandler) PublishedCourse(c *fiber.Ctx) error {
	course, err := h.publishedCourse(c)
	if course == nil {
		return err
	}
	return response.Success(c, course)
}

// Chapters handles GET /api/v1/courses/:id/chapters
func (h *CourseHandler) Chapters(c *fiber.Ctx) error {
	course, err := h.publishedCourse(c)
	if course == nil {
		return err
	}
	chapters := []model.Chapter(course.Chapters)
	if chapters == nil {
		chapters = []model.Chapter{}
	}
	return response.Success(c, chapters)
}

// Recommendations handles GET /api/v1/courses/:id/recommendations
func (h *CourseHandler) Recommendations(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return response.BadRequest(c, "Invalid course ID")
	}

	courses, err := h.catalog.Recommendations(c.UserContext(), uint(id))
	if err != nil {
		if errors.Is(err, services.ErrCourseNotFound) {
			return response.NotFound(c, "Course not found")
		}
		return response.InternalServerError(c, "Failed to fetch recommendations")
	}
	return response.Success(c, courses)
}
