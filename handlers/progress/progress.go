package progress

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/coursehub-api/model"
	"github.com/sahilchouksey/coursehub-api/services"
	"github.com/sahilchouksey/coursehub-api/utils/middleware"
	"github.com/sahilchouksey/coursehub-api/utils/response"
	"github.com/sahilchouksey/coursehub-api/utils/validation"
)

// Tracker records progress and summarizes a learner's standing
type Tracker interface {
	Update(ctx context.Context, in services.ProgressInput) (*services.ProgressResult, error)
	Summary(ctx context.Context, userID uint, course *model.Course) (*services.CourseProgressSummary, error)
}

// CourseReader loads a course with its lessons
type CourseReader interface {
	GetCourse(ctx context.Context, id uint) (*model.Course, error)
	CourseVideos(ctx context.Context, courseID uint) ([]model.Video, error)
}

// ProgressHandler handles video progress and the learner's course view
type ProgressHandler struct {
	tracker   Tracker
	courses   CourseReader
	validator *validation.Validator
}

// NewProgressHandler creates a new progress handler
func NewProgressHandler(tracker Tracker, courses CourseReader) *ProgressHandler {
	return &ProgressHandler{
		tracker:   tracker,
		courses:   courses,
		validator: validation.NewValidator(),
	}
}

// VideoStatus is a lesson as seen by one learner
type VideoStatus struct {
	model.Video
	Locked    bool    `json:"locked"`
	Progress  float64 `json:"progress"`
	Completed bool    `json:"completed"`
}

// CourseDetailsResponse is the learner's view of a course
type CourseDetailsResponse struct {
	Course                *model.Course     `json:"course"`
	Enrolled              bool              `json:"enrolled"`
	Videos                []VideoStatus     `json:"videos"`
	Enrollment            *model.Enrollment `json:"enrollment,omitempty"`
	PercentageCompleted   float64           `json:"percentage_completed"`
	CompletedCourseStatus bool              `json:"completed_course_status"`
	HasCompleted          bool              `json:"has_completed"`
}

func progressError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrProgressNotIncreased):
		return response.BadRequest(c, "Progress should be greater than current video progress.")
	case errors.Is(err, services.ErrInvalidProgress):
		return response.BadRequest(c, "Progress must be between 0 and 100")
	case errors.Is(err, services.ErrVideoNotFound):
		return response.NotFound(c, "Video not found")
	case errors.Is(err, services.ErrCourseNotFound):
		return response.NotFound(c, "Course not found")
	case errors.Is(err, services.ErrNotEnrolled):
		return response.Forbidden(c, "You are not enrolled in this course")
	default:
		return response.InternalServerError(c, "Failed to update progress")
	}
}

// UpdateProgress handles POST /api/v1/user/video-progress
func (h *ProgressHandler) UpdateProgress(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	var req services.ProgressInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}
	req.UserID = userID

	result, err := h.tracker.Update(c.UserContext(), req)
	if err != nil {
		return progressError(c, err)
	}

	return response.SuccessWithMessage(c, "Progress updated successfully", result)
}

// CourseDetails handles GET /api/v1/user/courses/:courseId. Lessons stay
// locked unless they are demos or the learner is enrolled.
func (h *ProgressHandler) CourseDetails(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	courseID, err := c.ParamsInt("courseId")
	if err != nil || courseID < 1 {
		return response.BadRequest(c, "Invalid course ID")
	}

	course, err := h.courses.GetCourse(c.UserContext(), uint(courseID))
	if err != nil {
		if errors.Is(err, services.ErrCourseNotFound) {
			return response.NotFound(c, "Course not found")
		}
		return response.InternalServerError(c, "Failed to fetch course")
	}

	videos, err := h.courses.CourseVideos(c.UserContext(), course.ID)
	if err != nil {
		return response.InternalServerError(c, "Failed to fetch videos")
	}

	out := CourseDetailsResponse{Course: course}
	summary, err := h.tracker.Summary(c.UserContext(), userID, course)
	switch {
	case err == nil:
		out.Enrolled = true
		out.Enrollment = summary.Enrollment
		out.PercentageCompleted = summary.Enrollment.PercentageCompleted
		out.CompletedCourseStatus = summary.Enrollment.CompletedCourseStatus
		out.HasCompleted = summary.HasCompleted
	case errors.Is(err, services.ErrNotEnrolled):
	default:
		return response.InternalServerError(c, "Failed to fetch progress")
	}

	out.Videos = lessonStatus(videos, summary, out.Enrolled)
	return response.Success(c, out)
}

func lessonStatus(videos []model.Video, summary *services.CourseProgressSummary, enrolled bool) []VideoStatus {
	byVideo := map[uint]model.VideoProgress{}
	if summary != nil {
		for _, p := range summary.Videos {
			byVideo[p.VideoID] = p
		}
	}

	out := make([]VideoStatus, 0, len(videos))
	for _, v := range videos {
		status := VideoStatus{Video: v, Locked: !enrolled && !v.Demo}
		if status.Locked {
			status.VideoURL = ""
			status.VideoFile = ""
			status.PDF = ""
			status.PPT = ""
			status.Doc = ""
		}
		if p, ok := byVideo[v.ID]; ok {
			status.Progress = p.Progress
			status.Completed = p.Completed
		}
		out = append(out, status)
	}
	return out
}
