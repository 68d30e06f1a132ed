package services

import (
	"context"
	"errors"
	"math"

	"github.com/sahilchouksey/coursehub-api/model"
	"github.com/sahilchouksey/coursehub-api/repository"
)

var (
	ErrProgressNotIncreased = errors.New("progress not greater than stored progress")
	ErrInvalidProgress      = errors.New("progress out of range")
	ErrVideoNotFound        = errors.New("video not found")
	ErrNotEnrolled          = errors.New("user not enrolled in course")
)

// ProgressStore persists progress under the enrollment lock
type ProgressStore interface {
	FindCourse(ctx context.Context, id uint) (*model.Course, error)
	FindVideo(ctx context.Context, id uint) (*model.Video, error)
	FindEnrollment(ctx context.Context, userID, courseID uint) (*model.Enrollment, error)
	ListProgress(ctx context.Context, userID, courseID uint) ([]model.VideoProgress, error)
	Locked(ctx context.Context, userID, courseID uint, fn func(tx repository.ProgressTx) error) error
}

// ProgressInput is a playback position report
type ProgressInput struct {
	UserID   uint    `json:"-"`
	VideoID  uint    `json:"video_id" validate:"required"`
	CourseID uint    `json:"course_id" validate:"required"`
	Progress float64 `json:"progress" validate:"gte=0,lte=100"`
}

// ProgressResult is the stored progress and the course rollup
type ProgressResult struct {
	Progress              *model.VideoProgress `json:"progress"`
	PercentageCompleted   float64              `json:"percentage_completed"`
	CompletedCourseStatus bool                 `json:"completed_course_status"`
	ThresholdReached      bool                 `json:"threshold_reached"`
}

// CourseProgressSummary is a learner's standing in one course
type CourseProgressSummary struct {
	Enrollment   *model.Enrollment     `json:"enrollment"`
	Videos       []model.VideoProgress `json:"videos"`
	HasCompleted bool                  `json:"has_completed"`
}

// ProgressService records video progress and rolls it up into the enrollment
type ProgressService struct {
	store ProgressStore
}

// NewProgressService creates a new progress service
func NewProgressService(store ProgressStore) *ProgressService {
	return &ProgressService{store: store}
}

// Update stores progress for a video if it moved forward and recomputes the
// course completion. Lower or equal values leave everything unchanged.
func (s *ProgressService) Update(ctx context.Context, in ProgressInput) (*ProgressResult, error) {
	if in.Progress < 0 || in.Progress > 100 || math.IsNaN(in.Progress) {
		return nil, ErrInvalidProgress
	}

	video, err := s.store.FindVideo(ctx, in.VideoID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrVideoNotFound
		}
		return nil, err
	}
	if video.CourseID != in.CourseID {
		return nil, ErrVideoNotFound
	}
	course, err := s.store.FindCourse(ctx, in.CourseID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCourseNotFound
		}
		return nil, err
	}

	result := &ProgressResult{}
	err = s.store.Locked(ctx, in.UserID, in.CourseID, func(tx repository.ProgressTx) error {
		progress, err := tx.FindProgress(in.VideoID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			progress = &model.VideoProgress{
				UserID:   in.UserID,
				VideoID:  in.VideoID,
				CourseID: in.CourseID,
			}
		case err != nil:
			return err
		case in.Progress <= progress.Progress:
			return ErrProgressNotIncreased
		}

		progress.Progress = in.Progress
		progress.Completed = in.Progress >= 100
		if err := tx.SaveProgress(progress); err != nil {
			return err
		}

		rows, err := tx.CourseProgress()
		if err != nil {
			return err
		}
		avg, allComplete := Rollup(rows)

		enrollment := tx.Enrollment()
		enrollment.PercentageCompleted = avg
		enrollment.CompletedCourseStatus = allComplete
		if err := tx.SaveEnrollment(enrollment); err != nil {
			return err
		}

		result.Progress = progress
		result.PercentageCompleted = avg
		result.CompletedCourseStatus = allComplete
		result.ThresholdReached = avg >= course.Percentage
		return nil
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotEnrolled
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Summary returns the enrollment and per-video progress of a learner
func (s *ProgressService) Summary(ctx context.Context, userID uint, course *model.Course) (*CourseProgressSummary, error) {
	enrollment, err := s.store.FindEnrollment(ctx, userID, course.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotEnrolled
		}
		return nil, err
	}
	rows, err := s.store.ListProgress(ctx, userID, course.ID)
	if err != nil {
		return nil, err
	}
	return &CourseProgressSummary{
		Enrollment:   enrollment,
		Videos:       rows,
		HasCompleted: HasCompleted(course, rows),
	}, nil
}

// Rollup averages the progress rows of a course. A course is all complete
// only when every tracked video is at 100.
func Rollup(rows []model.VideoProgress) (float64, bool) {
	if len(rows) == 0 {
		return 0, false
	}
	var sum float64
	allComplete := true
	for _, r := range rows {
		sum += r.Progress
		if r.Progress < 100 {
			allComplete = false
		}
	}
	avg := math.Round(sum/float64(len(rows))*100) / 100
	return avg, allComplete
}

// HasCompleted reports whether the share of completed videos out of the
// course's total reaches its completion threshold
func HasCompleted(course *model.Course, rows []model.VideoProgress) bool {
	if course.TotalVideo <= 0 {
		return false
	}
	completed := 0
	for _, r := range rows {
		if r.Completed {
			completed++
		}
	}
	return float64(completed)/float64(course.TotalVideo)*100 >= course.Percentage
}
