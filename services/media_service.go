package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sahilchouksey/coursehub-api/services/storage"
	"github.com/sahilchouksey/coursehub-api/utils/pdfvalidation"
)

var (
	ErrMediaTimeout  = errors.New("video processing timed out")
	ErrMediaFailed   = errors.New("video processing failed")
	ErrInvalidUpload = errors.New("invalid upload")
)

const dashSegmentLength = "20000"

// MediaConfig holds the media processing settings
type MediaConfig struct {
	Root       string        // MEDIA_ROOT, where DASH output is written
	MP4BoxPath string        // MP4BOX_PATH
	Timeout    time.Duration // MEDIA_TIMEOUT
}

// CommandRunner runs an external program and returns its combined output
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// localPather is implemented by stores that keep files on this machine
type localPather interface {
	Path(key string) string
}

// MediaService stores lesson uploads and packages videos for DASH streaming
type MediaService struct {
	config MediaConfig
	files  storage.Store
	run    CommandRunner
	now    func() time.Time
}

// NewMediaService creates a new media service
func NewMediaService(config MediaConfig, files storage.Store) *MediaService {
	if config.MP4BoxPath == "" {
		config.MP4BoxPath = "MP4Box"
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Minute
	}
	return &MediaService{
		config: config,
		files:  files,
		run:    execRunner,
		now:    time.Now,
	}
}

// SaveFile stores an uploaded attachment (thumbnail, ppt, doc) under prefix
// and returns its public URL
func (s *MediaService) SaveFile(ctx context.Context, file *multipart.FileHeader, prefix string) (string, error) {
	f, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()

	key := storage.GenerateKey(prefix, file.Filename)
	return s.files.Upload(ctx, key, f, storage.ContentType(file.Filename))
}

// SaveDocument validates an uploaded PDF before storing it
func (s *MediaService) SaveDocument(ctx context.Context, file *multipart.FileHeader, prefix string) (string, error) {
	result, err := pdfvalidation.ValidatePDFFile(file, pdfvalidation.CourseDocumentLimits)
	if err != nil {
		return "", err
	}
	if !result.Valid {
		return "", fmt.Errorf("%w: %s", ErrInvalidUpload, result.Error)
	}
	return s.SaveFile(ctx, file, prefix)
}

// PackageVideo converts an uploaded video into a DASH manifest plus segments
// below videos/<course>/<chapter>/<name>/ and returns the manifest URL.
// Stores on this machine serve the output in place; remote stores get the
// whole tree uploaded.
func (s *MediaService) PackageVideo(ctx context.Context, file *multipart.FileHeader, courseID uint, chapter int, title string) (string, error) {
	name := fmt.Sprintf("%s_%d", storage.SanitizeName(strings.TrimSuffix(title, filepath.Ext(title))), s.now().UnixMilli())
	prefix := fmt.Sprintf("videos/%d/%d/%s", courseID, chapter, name)

	dir := filepath.Join(s.config.Root, filepath.FromSlash(prefix))
	local, isLocal := s.files.(localPather)
	if isLocal {
		dir = local.Path(prefix)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create media directory: %w", err)
	}

	source := filepath.Join(dir, name+strings.ToLower(filepath.Ext(file.Filename)))
	if err := copyUpload(file, source); err != nil {
		os.RemoveAll(dir)
		return "", err
	}

	manifest := name + ".mpd"
	if err := s.dash(ctx, source, filepath.Join(dir, manifest)); err != nil {
		os.RemoveAll(dir)
		return "", err
	}
	// the DASH tree is all a player needs
	if err := os.Remove(source); err != nil {
		log.Printf("[MEDIA] failed to remove source %s: %v", source, err)
	}

	if isLocal {
		return s.files.URL(prefix + "/" + manifest), nil
	}

	url, err := storage.UploadDir(ctx, s.files, dir, prefix, manifest)
	if err != nil {
		return "", fmt.Errorf("failed to upload DASH output: %w", err)
	}
	if err := os.RemoveAll(dir); err != nil {
		log.Printf("[MEDIA] failed to clean up %s: %v", dir, err)
	}
	return url, nil
}

func (s *MediaService) dash(ctx context.Context, source, out string) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	args := DashArgs(source, out)
	start := s.now()
	output, err := s.run(ctx, s.config.MP4BoxPath, args...)
	if ctx.Err() == context.DeadlineExceeded {
		log.Printf("[MEDIA] MP4Box timed out after %s for %s", s.config.Timeout, source)
		return ErrMediaTimeout
	}
	if err != nil {
		log.Printf("[MEDIA] MP4Box failed for %s: %v\n%s", source, err, output)
		return fmt.Errorf("%w: %v", ErrMediaFailed, err)
	}
	log.Printf("[MEDIA] packaged %s in %s", filepath.Base(out), time.Since(start).Round(time.Millisecond))
	return nil
}

// DashArgs are the MP4Box arguments for a live-profile DASH package with
// 20 second segments
func DashArgs(source, out string) []string {
	return []string{
		"-dash", dashSegmentLength,
		"-frag", dashSegmentLength,
		"-rap",
		"-profile", "live",
		"-out", out,
		source,
	}
}

func copyUpload(file *multipart.FileHeader, dst string) error {
	src, err := file.Open()
	if err != nil {
		return fmt.Errorf("failed to open upload: %w", err)
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Base(dst), err)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return fmt.Errorf("failed to save upload: %w", err)
	}
	return nil
}

// ChapterKey is the storage prefix of a chapter's attachments
func ChapterKey(courseID uint, chapter int) string {
	return "courses/" + strconv.FormatUint(uint64(courseID), 10) + "/" + strconv.Itoa(chapter)
}
