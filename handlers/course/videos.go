package course

import (
	"context"
	"errors"
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/lib/pq"
	"github.com/sahilchouksey/coursehub-api/model"
	"github.com/sahilchouksey/coursehub-api/services"
	"github.com/sahilchouksey/coursehub-api/utils/response"
	"github.com/sahilchouksey/coursehub-api/utils/validation"
	"gorm.io/gorm"
)

// MediaStore saves lesson uploads
type MediaStore interface {
	SaveFile(ctx context.Context, file *multipart.FileHeader, prefix string) (string, error)
	SaveDocument(ctx context.Context, file *multipart.FileHeader, prefix string) (string, error)
	PackageVideo(ctx context.Context, file *multipart.FileHeader, courseID uint, chapter int, title string) (string, error)
}

func mediaError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidUpload):
		return response.BadRequest(c, strings.TrimPrefix(err.Error(), services.ErrInvalidUpload.Error()+": "))
	case errors.Is(err, services.ErrMediaTimeout):
		return response.GatewayTimeout(c, "Video processing timed out")
	case errors.Is(err, services.ErrMediaFailed):
		return response.InternalServerError(c, "Video processing failed")
	default:
		return response.InternalServerError(c, "Failed to store upload")
	}
}

// VideoHandler handles lesson uploads and ordering
type VideoHandler struct {
	db        *gorm.DB
	catalog   Catalog
	media     MediaStore
	validator *validation.Validator
}

// NewVideoHandler creates a new video handler
func NewVideoHandler(db *gorm.DB, catalog Catalog, media MediaStore) *VideoHandler {
	return &VideoHandler{
		db:        db,
		catalog:   catalog,
		media:     media,
		validator: validation.NewValidator(),
	}
}

// UploadVideoRequest holds the form fields of a lesson upload
type UploadVideoRequest struct {
	CourseID    uint   `json:"course_id" form:"course_id" validate:"required"`
	Chapter     int    `json:"chapter" form:"chapter" validate:"required,min=1"`
	Title       string `json:"title" form:"title" validate:"required,max=50"`
	Description string `json:"description" form:"description" validate:"omitempty,max=500"`
	Type        string `json:"type" form:"type" validate:"omitempty,oneof=video document"`
	Demo        bool   `json:"demo" form:"demo"`
	Tags        string `json:"tags" form:"tags"` // comma separated
	Order       int    `json:"order" form:"order" validate:"gte=0"`
}

// UpdateVideoRequest represents the request body for editing a lesson
type UpdateVideoRequest struct {
	Chapter     *int      `json:"chapter" validate:"omitempty,min=1"`
	Title       *string   `json:"title" validate:"omitempty,max=50"`
	Description *string   `json:"description" validate:"omitempty,max=500"`
	Demo        *bool     `json:"demo"`
	Tags        *[]string `json:"tags"`
	Order       *int      `json:"order" validate:"omitempty,gte=0"`
}

// VideoOrder moves one lesson to a new position
type VideoOrder struct {
	ID    uint `json:"id" validate:"required"`
	Order int  `json:"order" validate:"gte=0"`
}

func splitTags(raw string) pq.StringArray {
	var tags pq.StringArray
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// UploadVideo handles POST /api/v1/admin/videos (multipart: video, thumbnail, pdf, ppt, doc)
func (h *VideoHandler) UploadVideo(c *fiber.Ctx) error {
	var req UploadVideoRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid form data")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}
	if req.Type == "" {
		req.Type = model.VideoTypeVideo
	}

	var course model.Course
	if err := h.db.First(&course, req.CourseID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Course not found")
		}
		return response.InternalServerError(c, "Failed to fetch course")
	}
	if len(course.Chapters) > 0 && !course.HasChapter(req.Chapter) {
		return response.BadRequest(c, "Chapter does not exist in this course")
	}

	video := model.Video{
		CourseID:    course.ID,
		Chapter:     req.Chapter,
		Title:       validation.SanitizeString(req.Title),
		Description: req.Description,
		Type:        req.Type,
		Demo:        req.Demo,
		Tags:        splitTags(req.Tags),
		Order:       req.Order,
		Active:      true,
	}

	ctx := c.UserContext()
	prefix := services.ChapterKey(course.ID, req.Chapter)

	if file, err := c.FormFile("video"); err == nil {
		url, err := h.media.PackageVideo(ctx, file, course.ID, req.Chapter, req.Title)
		if err != nil {
			return mediaError(c, err)
		}
		video.VideoURL = url
		video.VideoFile = file.Filename
	} else if req.Type == model.VideoTypeVideo {
		return response.BadRequest(c, "Video file is required")
	}

	if file, err := c.FormFile("pdf"); err == nil {
		url, err := h.media.SaveDocument(ctx, file, prefix)
		if err != nil {
			return mediaError(c, err)
		}
		video.PDF = url
	}

	attachments := map[string]*string{
		"thumbnail": &video.Thumbnail,
		"ppt":       &video.PPT,
		"doc":       &video.Doc,
	}
	for field, dst := range attachments {
		file, err := c.FormFile(field)
		if err != nil {
			continue
		}
		url, err := h.media.SaveFile(ctx, file, prefix)
		if err != nil {
			return mediaError(c, err)
		}
		*dst = url
	}

	if video.Type == model.VideoTypeDocument && video.PDF == "" && video.PPT == "" && video.Doc == "" {
		return response.BadRequest(c, "A document lesson needs a pdf, ppt or doc file")
	}

	if err := h.db.Create(&video).Error; err != nil {
		return response.InternalServerError(c, "Failed to save video")
	}
	h.catalog.Invalidate(ctx, course.ID)

	return response.CreatedWithMessage(c, "Video uploaded successfully", video)
}

// ListVideos handles GET /api/v1/admin/videos
func (h *VideoHandler) ListVideos(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	pagination := response.CalculatePagination(page, limit, 0)
	page, limit = pagination.CurrentPage, pagination.PerPage

	query := h.db.Model(&model.Video{})
	if search := c.Query("search"); search != "" {
		query = query.Where("title ILIKE ?", "%"+search+"%")
	}
	if tag := c.Query("tag"); tag != "" {
		query = query.Where("? = ANY(tags)", tag)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.InternalServerError(c, "Failed to count videos")
	}

	var videos []model.Video
	if err := query.Preload("Course").
		Order("created_at DESC").
		Limit(limit).
		Offset((page - 1) * limit).
		Find(&videos).Error; err != nil {
		return response.InternalServerError(c, "Failed to fetch videos")
	}

	return response.Paginated(c, videos, response.CalculatePagination(page, limit, total))
}

// CourseVideos handles GET /api/v1/admin/courses/:id/videos
func (h *VideoHandler) CourseVideos(c *fiber.Ctx) error {
	var videos []model.Video
	if err := h.db.Where("course_id = ?", c.Params("id")).
		Order("sort_order ASC, id ASC").
		Find(&videos).Error; err != nil {
		return response.InternalServerError(c, "Failed to fetch videos")
	}
	return response.Success(c, videos)
}

func (h *VideoHandler) findVideo(c *fiber.Ctx) (*model.Video, error) {
	var video model.Video
	if err := h.db.First(&video, c.Params("id")).Error; err != nil {
		return nil, err
	}
	return &video, nil
}

func videoLookupError(c *fiber.Ctx, err error) error {
	if err == gorm.ErrRecordNotFound {
		return response.NotFound(c, "Video not found")
	}
	return response.InternalServerError(c, "Failed to fetch video")
}

// UpdateVideo handles PUT /api/v1/admin/videos/:id
func (h *VideoHandler) UpdateVideo(c *fiber.Ctx) error {
	var req UpdateVideoRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	video, err := h.findVideo(c)
	if err != nil {
		return videoLookupError(c, err)
	}

	if req.Chapter != nil {
		video.Chapter = *req.Chapter
	}
	if req.Title != nil {
		video.Title = validation.SanitizeString(*req.Title)
	}
	if req.Description != nil {
		video.Description = *req.Description
	}
	if req.Demo != nil {
		video.Demo = *req.Demo
	}
	if req.Tags != nil {
		video.Tags = pq.StringArray(*req.Tags)
	}
	if req.Order != nil {
		video.Order = *req.Order
	}

	if err := h.db.Save(video).Error; err != nil {
		return response.InternalServerError(c, "Failed to update video")
	}
	h.catalog.Invalidate(c.UserContext(), video.CourseID)

	return response.SuccessWithMessage(c, "Video updated successfully", video)
}

// ToggleVideo handles PATCH /api/v1/admin/videos/:id/toggle
func (h *VideoHandler) ToggleVideo(c *fiber.Ctx) error {
	video, err := h.findVideo(c)
	if err != nil {
		return videoLookupError(c, err)
	}

	video.Active = !video.Active
	if err := h.db.Model(video).Update("active", video.Active).Error; err != nil {
		return response.InternalServerError(c, "Failed to update video")
	}
	h.catalog.Invalidate(c.UserContext(), video.CourseID)

	return response.SuccessWithMessage(c, "Video status updated successfully", video)
}

// ReorderVideos handles PUT /api/v1/admin/videos/order
func (h *VideoHandler) ReorderVideos(c *fiber.Ctx) error {
	var req []VideoOrder
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if len(req) == 0 {
		return response.BadRequest(c, "No videos to reorder")
	}
	for _, item := range req {
		if err := h.validator.ValidateStruct(item); err != nil {
			return response.ValidationError(c, err)
		}
	}

	courses := map[uint]bool{}
	err := h.db.Transaction(func(tx *gorm.DB) error {
		for _, item := range req {
			var video model.Video
			if err := tx.Select("id", "course_id").First(&video, item.ID).Error; err != nil {
				return err
			}
			if err := tx.Model(&video).Update("sort_order", item.Order).Error; err != nil {
				return err
			}
			courses[video.CourseID] = true
		}
		return nil
	})
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Video not found")
		}
		return response.InternalServerError(c, "Failed to reorder videos")
	}
	for courseID := range courses {
		h.catalog.Invalidate(c.UserContext(), courseID)
	}

	return response.SuccessWithMessage(c, "Videos reordered successfully", nil)
}

// DeleteVideo handles DELETE /api/v1/admin/videos/:id. Lessons of a course
// with enrolled learners cannot be removed.
func (h *VideoHandler) DeleteVideo(c *fiber.Ctx) error {
	video, err := h.findVideo(c)
	if err != nil {
		return videoLookupError(c, err)
	}

	var enrolled int64
	if err := h.db.Model(&model.Enrollment{}).Where("course_id = ?", video.CourseID).Count(&enrolled).Error; err != nil {
		return response.InternalServerError(c, "Failed to check enrollments")
	}
	if enrolled > 0 {
		return response.BadRequest(c, "Cannot delete a video of a course with enrolled learners")
	}

	if err := h.db.Delete(video).Error; err != nil {
		return response.InternalServerError(c, "Failed to delete video")
	}
	h.catalog.Invalidate(c.UserContext(), video.CourseID)

	return response.SuccessWithMessage(c, "Video deleted successfully", nil)
}
