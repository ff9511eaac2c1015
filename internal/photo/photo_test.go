package photo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/chefriend/chefriend-cli/internal/api"
	"github.com/chefriend/chefriend-cli/internal/survey"
)

var (
	pngHeader  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
	jpegHeader = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00\x01\x01\x00\x00\x01\x00\x01\x00\x00")
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, data, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return p
}

// ---------------------------------------------------------------------------
// Stage
// ---------------------------------------------------------------------------

func TestStageDetectsImages(t *testing.T) {
	dir := t.TempDir()
	// The extension lies; detection goes by content.
	a := writeFile(t, dir, "receipt.dat", pngHeader)
	b := writeFile(t, dir, "dish.jpg", jpegHeader)

	files, err := Stage([]string{a, b})
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("len(files) = %d, want 2", len(files))
	}
	if files[0].ContentType != "image/png" || files[0].Name != "receipt.dat" {
		t.Errorf("files[0] = %+v", files[0])
	}
	if files[1].ContentType != "image/jpeg" {
		t.Errorf("files[1].ContentType = %q, want image/jpeg", files[1].ContentType)
	}
	if files[1].Size != int64(len(jpegHeader)) {
		t.Errorf("files[1].Size = %d, want %d", files[1].Size, len(jpegHeader))
	}
	if !filepath.IsAbs(files[0].Path) {
		t.Errorf("Path %q should be absolute", files[0].Path)
	}
}

func TestStageRejectsNonImage(t *testing.T) {
	p := writeFile(t, t.TempDir(), "notes.png", []byte("just some text, not a picture\n"))
	_, err := Stage([]string{p})
	if !errors.Is(err, ErrNotImage) {
		t.Errorf("err = %v, want ErrNotImage", err)
	}
}

func TestStageRejectsLargeFile(t *testing.T) {
	p := writeFile(t, t.TempDir(), "huge.png", pngHeader)
	if err := os.Truncate(p, MaxFileSize+1); err != nil {
		t.Fatalf("Truncate: %v", err)
	}
	_, err := Stage([]string{p})
	if !errors.Is(err, ErrTooLarge) {
		t.Errorf("err = %v, want ErrTooLarge", err)
	}
}

func TestStageMissingFileAndDirectory(t *testing.T) {
	dir := t.TempDir()
	if _, err := Stage([]string{filepath.Join(dir, "nope.png")}); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := Stage([]string{dir}); err == nil {
		t.Error("expected error for directory")
	}
}

func TestStageEmpty(t *testing.T) {
	files, err := Stage(nil)
	if err != nil || len(files) != 0 {
		t.Errorf("Stage(nil) = %v, %v", files, err)
	}
}

// ---------------------------------------------------------------------------
// Upload
// ---------------------------------------------------------------------------

type fakeBackend struct {
	mu      sync.Mutex
	puts    []string
	failPut string
	delay   map[string]time.Duration
}

func (f *fakeBackend) PresignFeedbackPhotos(ctx context.Context, names []string) ([]api.PresignedPhoto, error) {
	out := make([]api.PresignedPhoto, len(names))
	for i, n := range names {
		out[i] = api.PresignedPhoto{OriginalFileName: n, PresignedURL: "https://s3.test/" + n, S3Key: "key/" + n}
	}
	return out, nil
}

func (f *fakeBackend) PutObject(ctx context.Context, url, contentType string, data []byte) error {
	if d := f.delay[url]; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if url == "https://s3.test/"+f.failPut {
		return fmt.Errorf("status 500")
	}
	f.mu.Lock()
	f.puts = append(f.puts, url)
	f.mu.Unlock()
	return nil
}

func stagedFiles(t *testing.T, names ...string) []survey.PhotoFile {
	t.Helper()
	dir := t.TempDir()
	files := make([]survey.PhotoFile, len(names))
	for i, n := range names {
		files[i] = survey.PhotoFile{Path: writeFile(t, dir, n, pngHeader), Name: n, ContentType: "image/png"}
	}
	return files
}

func TestUploadSequentialOrder(t *testing.T) {
	backend := &fakeBackend{}
	keys, err := NewUploader(backend).Upload(context.Background(), stagedFiles(t, "1.png", "2.png", "3.png"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	want := []string{"key/1.png", "key/2.png", "key/3.png"}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("keys[%d] = %q, want %q", i, keys[i], want[i])
		}
	}
	if len(backend.puts) != 3 || backend.puts[0] != "https://s3.test/1.png" {
		t.Errorf("puts = %v", backend.puts)
	}
}

func TestUploadSequentialStopsAtFirstFailure(t *testing.T) {
	backend := &fakeBackend{failPut: "1.png"}
	keys, err := NewUploader(backend).Upload(context.Background(), stagedFiles(t, "1.png", "2.png"))
	if err == nil {
		t.Fatal("expected error")
	}
	if keys != nil {
		t.Errorf("keys = %v, want nil", keys)
	}
	if len(backend.puts) != 0 {
		t.Errorf("second file should not be uploaded, puts = %v", backend.puts)
	}
}

func TestUploadParallelPreservesInputOrder(t *testing.T) {
	// The first file finishes last.
	backend := &fakeBackend{delay: map[string]time.Duration{
		"https://s3.test/a.png": 80 * time.Millisecond,
		"https://s3.test/b.png": 40 * time.Millisecond,
	}}
	u := NewUploader(backend, WithConcurrency(3))
	keys, err := u.Upload(context.Background(), stagedFiles(t, "a.png", "b.png", "c.png"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	want := []string{"key/a.png", "key/b.png", "key/c.png"}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("keys[%d] = %q, want %q", i, keys[i], want[i])
		}
	}
	if backend.puts[0] != "https://s3.test/c.png" {
		t.Errorf("expected c.png to finish first, puts = %v", backend.puts)
	}
}

func TestUploadParallelFailure(t *testing.T) {
	backend := &fakeBackend{failPut: "b.png"}
	u := NewUploader(backend, WithConcurrency(2))
	if _, err := u.Upload(context.Background(), stagedFiles(t, "a.png", "b.png")); err == nil {
		t.Fatal("expected error")
	}
}

func TestUploadMissingFile(t *testing.T) {
	files := []survey.PhotoFile{{Path: filepath.Join(t.TempDir(), "gone.png"), Name: "gone.png"}}
	if _, err := NewUploader(&fakeBackend{}).Upload(context.Background(), files); err == nil {
		t.Fatal("expected error for a staged file that was deleted")
	}
}

func TestUploadNoFiles(t *testing.T) {
	keys, err := NewUploader(&fakeBackend{}).Upload(context.Background(), nil)
	if err != nil || len(keys) != 0 {
		t.Errorf("Upload(nil) = %v, %v", keys, err)
	}
}
