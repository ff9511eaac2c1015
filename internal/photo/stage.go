// Package photo stages local order-verification photos and uploads them to
// presigned storage targets.
package photo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"

	"github.com/chefriend/chefriend-cli/internal/survey"
)

// MaxFileSize is the largest photo accepted.
const MaxFileSize = 10 << 20

var (
	// ErrNotImage is returned for files whose content is not an image.
	ErrNotImage = errors.New("photo: not an image")
	// ErrTooLarge is returned for files over MaxFileSize.
	ErrTooLarge = errors.New("photo: file too large")
)

// Stage validates each path and returns the handles to keep in the survey
// session. Content type is sniffed from the file, not taken from the name.
func Stage(paths []string) ([]survey.PhotoFile, error) {
	files := make([]survey.PhotoFile, 0, len(paths))
	for _, p := range paths {
		f, err := stageOne(p)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

func stageOne(path string) (survey.PhotoFile, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return survey.PhotoFile{}, fmt.Errorf("photo: %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return survey.PhotoFile{}, fmt.Errorf("photo: %w", err)
	}
	if info.IsDir() {
		return survey.PhotoFile{}, fmt.Errorf("photo: %s is a directory", path)
	}
	if info.Size() > MaxFileSize {
		return survey.PhotoFile{}, fmt.Errorf("%w: %s is %s (max %s)", ErrTooLarge,
			filepath.Base(path), humanize.IBytes(uint64(info.Size())), humanize.IBytes(MaxFileSize))
	}

	mtype, err := mimetype.DetectFile(abs)
	if err != nil {
		return survey.PhotoFile{}, fmt.Errorf("photo: detect %s: %w", path, err)
	}
	contentType := mtype.String()
	if !isImage(contentType) {
		return survey.PhotoFile{}, fmt.Errorf("%w: %s is %s", ErrNotImage, filepath.Base(path), contentType)
	}

	return survey.PhotoFile{
		Path:        abs,
		Name:        filepath.Base(abs),
		ContentType: baseType(contentType),
		Size:        info.Size(),
	}, nil
}

func isImage(contentType string) bool {
	return strings.HasPrefix(contentType, "image/")
}

// baseType strips parameters such as "; charset=utf-8".
func baseType(contentType string) string {
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		return strings.TrimSpace(contentType[:i])
	}
	return contentType
}
