package repository

import (
	"context"

	"github.com/sahilchouksey/coursehub-api/model"
	"gorm.io/gorm"
)

// queries holds the lookups shared by every repository
type queries struct {
	db *gorm.DB
}

// FindCourse loads a course by id
func (q queries) FindCourse(ctx context.Context, id uint) (*model.Course, error) {
	var course model.Course
	if err := q.db.WithContext(ctx).First(&course, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &course, nil
}

// FindUser loads a user by id
func (q queries) FindUser(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	if err := q.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// FindVideo loads a video by id
func (q queries) FindVideo(ctx context.Context, id uint) (*model.Video, error) {
	var video model.Video
	if err := q.db.WithContext(ctx).First(&video, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &video, nil
}

// FindEnrollment loads the enrollment of a user in a course
func (q queries) FindEnrollment(ctx context.Context, userID, courseID uint) (*model.Enrollment, error) {
	var enrollment model.Enrollment
	err := q.db.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		First(&enrollment).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &enrollment, nil
}

// EnrollmentExists reports whether the user is enrolled in the course
func (q queries) EnrollmentExists(ctx context.Context, userID, courseID uint) (bool, error) {
	var count int64
	err := q.db.WithContext(ctx).
		Model(&model.Enrollment{}).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Count(&count).Error
	return count > 0, err
}
