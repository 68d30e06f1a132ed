package certificate

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/coursehub-api/model"
	"github.com/sahilchouksey/coursehub-api/repository"
	"github.com/sahilchouksey/coursehub-api/services"
	"github.com/sahilchouksey/coursehub-api/utils/middleware"
	"github.com/sahilchouksey/coursehub-api/utils/response"
	"github.com/sahilchouksey/coursehub-api/utils/validation"
)

// Issuer issues certificates and maps them to the template binding
type Issuer interface {
	Issue(ctx context.Context, in services.IssueCertificateInput) (*services.CertificateResult, error)
	View(cert *model.Certificate) services.CertificateView
}

// CertificateReader loads issued certificates
type CertificateReader interface {
	FindCourse(ctx context.Context, id uint) (*model.Course, error)
	FindCertificateByID(ctx context.Context, id, userID uint) (*model.Certificate, error)
	ListCertificates(ctx context.Context, userID uint) ([]model.Certificate, error)
}

// CertificateHandler handles certificate requests of learners
type CertificateHandler struct {
	issuer    Issuer
	store     CertificateReader
	validator *validation.Validator
}

// NewCertificateHandler creates a new certificate handler
func NewCertificateHandler(issuer Issuer, store CertificateReader) *CertificateHandler {
	return &CertificateHandler{
		issuer:    issuer,
		store:     store,
		validator: validation.NewValidator(),
	}
}

// IssueCertificate handles POST /api/v1/user/certificates
func (h *CertificateHandler) IssueCertificate(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	var req services.IssueCertificateInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}
	req.UserID = userID

	result, err := h.issuer.Issue(c.UserContext(), req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrCourseNotFound):
			return response.NotFound(c, "Course not found")
		case errors.Is(err, services.ErrNotEligible):
			return response.BadRequest(c, "Course is not completed yet")
		case errors.Is(err, services.ErrNotEnrolled):
			return response.BadRequest(c, "You are not enrolled in this course")
		default:
			return response.InternalServerError(c, "Failed to issue certificate")
		}
	}

	return response.SuccessWithMessage(c, "Certificate issued successfully", result)
}

// ListCertificates handles GET /api/v1/user/certificates
func (h *CertificateHandler) ListCertificates(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	certs, err := h.store.ListCertificates(c.UserContext(), userID)
	if err != nil {
		return response.InternalServerError(c, "Failed to fetch certificates")
	}
	return response.Success(c, certs)
}

// PreviewCertificate handles GET /api/v1/user/certificates/:id/preview and
// renders the certificate template of the course type as HTML
func (h *CertificateHandler) PreviewCertificate(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return response.BadRequest(c, "Invalid certificate ID")
	}

	cert, err := h.store.FindCertificateByID(c.UserContext(), uint(id), userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.NotFound(c, "Certificate not found")
		}
		return response.InternalServerError(c, "Failed to fetch certificate")
	}

	courseType := ""
	if course, err := h.store.FindCourse(c.UserContext(), cert.CourseID); err == nil {
		courseType = course.CourseType
	}

	return c.Render(services.TemplateFor(courseType), h.issuer.View(cert))
}
