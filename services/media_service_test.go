package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sahilchouksey/coursehub-api/services/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fileHeader builds a multipart.FileHeader the way fiber hands uploads to handlers
func fileHeader(t *testing.T, field, name string, content []byte) *multipart.FileHeader {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile(field, name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&body, w.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { form.RemoveAll() })
	return form.File[field][0]
}

// fakeMP4Box writes a manifest and one segment next to the -out path
func fakeMP4Box(calls *[][]string) CommandRunner {
	return func(ctx context.Context, name string, args ...string) ([]byte, error) {
		*calls = append(*calls, append([]string{name}, args...))
		out := args[len(args)-2]
		if err := os.WriteFile(out, []byte("<MPD/>"), 0o644); err != nil {
			return nil, err
		}
		return nil, os.WriteFile(filepath.Join(filepath.Dir(out), "seg_1.m4s"), []byte("seg"), 0o644)
	}
}

type remoteStore struct{ keys []string }

func (r *remoteStore) Upload(_ context.Context, key string, data io.ReadSeeker, _ string) (string, error) {
	r.keys = append(r.keys, key)
	return r.URL(key), nil
}
func (r *remoteStore) Delete(context.Context, string) error { return nil }
func (r *remoteStore) URL(key string) string               { return "https://cdn.example.com/" + key }

func TestDashArgs(t *testing.T) {
	assert.Equal(t,
		[]string{"-dash", "20000", "-frag", "20000", "-rap", "-profile", "live", "-out", "out/a.mpd", "in.mp4"},
		DashArgs("in.mp4", "out/a.mpd"))
}

func TestPackageVideo_LocalStoreServesInPlace(t *testing.T) {
	root := t.TempDir()
	svc := NewMediaService(MediaConfig{Root: root, MP4BoxPath: "/usr/bin/MP4Box"}, storage.NewLocalStore(root, "http://localhost:8080"))
	svc.now = func() time.Time { return fixedNow }
	var calls [][]string
	svc.run = fakeMP4Box(&calls)

	url, err := svc.PackageVideo(context.Background(), fileHeader(t, "video", "intro.mp4", []byte("mp4")), 3, 2, "Intro Lesson")
	require.NoError(t, err)

	name := "Intro_Lesson_1792233000000"
	assert.Equal(t, "http://localhost:8080/public/videos/3/2/"+name+"/"+name+".mpd", url)
	require.Len(t, calls, 1)
	assert.Equal(t, "/usr/bin/MP4Box", calls[0][0])
	assert.True(t, strings.HasSuffix(calls[0][len(calls[0])-1], name+".mp4"))

	dir := filepath.Join(root, "videos", "3", "2", name)
	assert.FileExists(t, filepath.Join(dir, name+".mpd"))
	assert.NoFileExists(t, filepath.Join(dir, name+".mp4"), "source is dropped after packaging")
}

func TestPackageVideo_RemoteStoreUploadsTree(t *testing.T) {
	root := t.TempDir()
	remote := &remoteStore{}
	svc := NewMediaService(MediaConfig{Root: root}, remote)
	svc.now = func() time.Time { return fixedNow }
	var calls [][]string
	svc.run = fakeMP4Box(&calls)

	url, err := svc.PackageVideo(context.Background(), fileHeader(t, "video", "a.mp4", []byte("mp4")), 1, 1, "a")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/videos/1/1/a_1792233000000/a_1792233000000.mpd", url)
	assert.ElementsMatch(t, []string{
		"videos/1/1/a_1792233000000/a_1792233000000.mpd",
		"videos/1/1/a_1792233000000/seg_1.m4s",
	}, remote.keys)
	assert.NoDirExists(t, filepath.Join(root, "videos", "1", "1", "a_1792233000000"))
}

func TestPackageVideo_Failures(t *testing.T) {
	root := t.TempDir()
	svc := NewMediaService(MediaConfig{Root: root, Timeout: 20 * time.Millisecond}, storage.NewLocalStore(root, "http://x"))

	svc.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	_, err := svc.PackageVideo(context.Background(), fileHeader(t, "video", "a.mp4", []byte("mp4")), 1, 1, "slow")
	assert.ErrorIs(t, err, ErrMediaTimeout)

	svc.run = func(context.Context, string, ...string) ([]byte, error) {
		return []byte("Error: unsupported codec"), errors.New("exit status 1")
	}
	_, err = svc.PackageVideo(context.Background(), fileHeader(t, "video", "a.mp4", []byte("mp4")), 1, 1, "broken")
	assert.ErrorIs(t, err, ErrMediaFailed)

	entries, _ := os.ReadDir(filepath.Join(root, "videos", "1", "1"))
	assert.Empty(t, entries, "failed output is removed")
}

func TestSaveDocumentRejectsNonPDF(t *testing.T) {
	root := t.TempDir()
	svc := NewMediaService(MediaConfig{Root: root}, storage.NewLocalStore(root, "http://x"))

	_, err := svc.SaveDocument(context.Background(), fileHeader(t, "pdf", "notes.txt", []byte("hello")), ChapterKey(1, 1))
	assert.ErrorIs(t, err, ErrInvalidUpload)

	url, err := svc.SaveFile(context.Background(), fileHeader(t, "thumbnail", "cover.png", []byte("png")), ChapterKey(1, 1))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "http://x/public/courses/1/1/"))
}
