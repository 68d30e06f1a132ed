package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/sahilchouksey/coursehub-api/model"
	"gorm.io/gorm"
)

const (
	catalogTTL          = 10 * time.Minute
	recommendationLimit = 5
	publishedCoursesKey = "courses:published"
)

// CatalogCache is the slice of the Redis cache the catalog uses
type CatalogCache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) error
	SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	DeletePattern(ctx context.Context, pattern string) error
}

// CatalogService serves course reads for learners, cached in Redis
type CatalogService struct {
	db    *gorm.DB
	cache CatalogCache // optional
}

// NewCatalogService creates a new catalog service. cache may be nil.
func NewCatalogService(db *gorm.DB, cache CatalogCache) *CatalogService {
	return &CatalogService{db: db, cache: cache}
}

func courseKey(id uint) string {
	return fmt.Sprintf("course:%d", id)
}

// GetCourse loads an active course with its chapters
func (s *CatalogService) GetCourse(ctx context.Context, id uint) (*model.Course, error) {
	var course model.Course
	if s.cached(ctx, courseKey(id), &course) {
		return &course, nil
	}

	err := s.db.WithContext(ctx).Where("id = ? AND active = ?", id, true).First(&course).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCourseNotFound
		}
		return nil, fmt.Errorf("failed to load course: %w", err)
	}
	s.store(ctx, courseKey(id), &course)
	return &course, nil
}

// PublishedCourses lists active courses that have at least one active video
func (s *CatalogService) PublishedCourses(ctx context.Context) ([]model.Course, error) {
	var courses []model.Course
	if s.cached(ctx, publishedCoursesKey, &courses) {
		return courses, nil
	}

	err := s.db.WithContext(ctx).
		Where("active = ?", true).
		Where("EXISTS (SELECT 1 FROM videos WHERE videos.course_id = courses.id AND videos.active = ? AND videos.deleted_at IS NULL)", true).
		Order("sequence ASC, id ASC").
		Find(&courses).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	s.store(ctx, publishedCoursesKey, courses)
	return courses, nil
}

// CourseVideos lists the active lessons of a course in display order
func (s *CatalogService) CourseVideos(ctx context.Context, courseID uint) ([]model.Video, error) {
	var videos []model.Video
	err := s.db.WithContext(ctx).
		Where("course_id = ? AND active = ?", courseID, true).
		Order("chapter ASC, sort_order ASC, id ASC").
		Find(&videos).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list videos: %w", err)
	}
	return videos, nil
}

// Recommendations returns up to five other published courses like courseID
func (s *CatalogService) Recommendations(ctx context.Context, courseID uint) ([]model.Course, error) {
	source, err := s.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	courses, err := s.PublishedCourses(ctx)
	if err != nil {
		return nil, err
	}
	return Recommend(*source, courses, recommendationLimit), nil
}

// Invalidate drops cached reads after a catalog write
func (s *CatalogService) Invalidate(ctx context.Context, courseID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeletePattern(ctx, courseKey(courseID)); err != nil {
		log.Printf("[CATALOG] failed to invalidate course %d: %v", courseID, err)
	}
	if err := s.cache.DeletePattern(ctx, publishedCoursesKey); err != nil {
		log.Printf("[CATALOG] failed to invalidate course list: %v", err)
	}
}

func (s *CatalogService) cached(ctx context.Context, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}
	return s.cache.GetJSON(ctx, key, dest) == nil
}

func (s *CatalogService) store(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetJSON(ctx, key, value, catalogTTL); err != nil {
		log.Printf("[CATALOG] failed to cache %s: %v", key, err)
	}
}

// Recommend picks courses matching type, author and language, dropping the
// language, then the author, then the type until limit are found
func Recommend(source model.Course, candidates []model.Course, limit int) []model.Course {
	rules := []func(c model.Course) bool{
		func(c model.Course) bool {
			return c.CourseType == source.CourseType && c.Author == source.Author && c.Language == source.Language
		},
		func(c model.Course) bool { return c.CourseType == source.CourseType && c.Author == source.Author },
		func(c model.Course) bool { return c.CourseType == source.CourseType },
		func(model.Course) bool { return true },
	}

	picked := make([]model.Course, 0, limit)
	seen := map[uint]bool{source.ID: true}
	for _, match := range rules {
		for _, c := range candidates {
			if len(picked) == limit {
				return picked
			}
			if seen[c.ID] || !match(c) {
				continue
			}
			seen[c.ID] = true
			picked = append(picked, c)
		}
	}
	return picked
}
