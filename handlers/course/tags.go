package course

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/coursehub-api/model"
	"github.com/sahilchouksey/coursehub-api/utils/response"
	"github.com/sahilchouksey/coursehub-api/utils/validation"
	"gorm.io/gorm"
)

// TagHandler handles video tags
type TagHandler struct {
	db        *gorm.DB
	validator *validation.Validator
}

// NewTagHandler creates a new tag handler
func NewTagHandler(db *gorm.DB) *TagHandler {
	return &TagHandler{db: db, validator: validation.NewValidator()}
}

// TagRequest is the body of a tag create or edit
type TagRequest struct {
	Name string `json:"name" validate:"required,min=1,max=100"`
}

// ListTags handles GET /api/v1/admin/tags
func (h *TagHandler) ListTags(c *fiber.Ctx) error {
	var tags []model.Tag
	if err := h.db.Order("name ASC").Find(&tags).Error; err != nil {
		return response.InternalServerError(c, "Failed to fetch tags")
	}
	return response.Success(c, tags)
}

// ListActiveTags handles GET /api/v1/tags
func (h *TagHandler) ListActiveTags(c *fiber.Ctx) error {
	var tags []model.Tag
	if err := h.db.Where("active = ?", true).Order("name ASC").Find(&tags).Error; err != nil {
		return response.InternalServerError(c, "Failed to fetch tags")
	}
	return response.Success(c, tags)
}

// CreateTag handles POST /api/v1/admin/tags
func (h *TagHandler) CreateTag(c *fiber.Ctx) error {
	var req TagRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	name := validation.SanitizeString(req.Name)
	var existing model.Tag
	if err := h.db.Where("LOWER(name) = LOWER(?)", name).First(&existing).Error; err == nil {
		return response.Conflict(c, "Tag already exists")
	}

	tag := model.Tag{Name: name, Active: true}
	if err := h.db.Create(&tag).Error; err != nil {
		return response.InternalServerError(c, "Failed to create tag")
	}
	return response.CreatedWithMessage(c, "Tag created successfully", tag)
}

// UpdateTag handles PUT /api/v1/admin/tags/:id
func (h *TagHandler) UpdateTag(c *fiber.Ctx) error {
	var req TagRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	var tag model.Tag
	if err := h.db.First(&tag, c.Params("id")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Tag not found")
		}
		return response.InternalServerError(c, "Failed to fetch tag")
	}

	name := validation.SanitizeString(req.Name)
	var existing model.Tag
	if err := h.db.Where("LOWER(name) = LOWER(?) AND id != ?", name, tag.ID).First(&existing).Error; err == nil {
		return response.Conflict(c, "Tag already exists")
	}

	tag.Name = name
	if err := h.db.Save(&tag).Error; err != nil {
		return response.InternalServerError(c, "Failed to update tag")
	}
	return response.SuccessWithMessage(c, "Tag updated successfully", tag)
}

// ToggleTag handles PATCH /api/v1/admin/tags/:id/toggle
func (h *TagHandler) ToggleTag(c *fiber.Ctx) error {
	var tag model.Tag
	if err := h.db.First(&tag, c.Params("id")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Tag not found")
		}
		return response.InternalServerError(c, "Failed to fetch tag")
	}

	tag.Active = !tag.Active
	if err := h.db.Model(&tag).Update("active", tag.Active).Error; err != nil {
		return response.InternalServerError(c, "Failed to update tag")
	}
	return response.SuccessWithMessage(c, "Tag status updated successfully", tag)
}

// DeleteTag handles DELETE /api/v1/admin/tags/:id
func (h *TagHandler) DeleteTag(c *fiber.Ctx) error {
	result := h.db.Delete(&model.Tag{}, c.Params("id"))
	if result.Error != nil {
		return response.InternalServerError(c, "Failed to delete tag")
	}
	if result.RowsAffected == 0 {
		return response.NotFound(c, "Tag not found")
	}
	return response.SuccessWithMessage(c, "Tag deleted successfully", nil)
}
