package storage

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"rivermonitor/internal/apperror"
	"rivermonitor/internal/config"
	"rivermonitor/internal/imaging"
	"rivermonitor/internal/logger"
	"rivermonitor/internal/metrics"
	"rivermonitor/internal/model"
)

const (
	// StagingDirName is the subdirectory of the upload directory holding
	// images that are not yet committed.
	StagingDirName = ".staging"
	// FilenameLayout names promoted images after their UTC timestamp.
	FilenameLayout = "20060102T150405Z"
	imageExt       = ".png"
)

// ImageStore keeps observation photos on disk. Writes go to the staging
// directory first and are promoted to their public name only when the
// matching row is about to commit.
type ImageStore struct {
	dir        string
	stagingDir string
	maxAge     time.Duration
	schedule   string
	logger     *logger.Logger
}

// Staged is an encoded image waiting to be promoted.
type Staged struct {
	Path string
	Size int64
}

// NewImageStore creates the upload and staging directories if needed.
func NewImageStore(cfg config.StorageConfig, logger *logger.Logger) (*ImageStore, error) {
	s := &ImageStore{
		dir:        cfg.UploadDir,
		stagingDir: filepath.Join(cfg.UploadDir, StagingDirName),
		maxAge:     cfg.StagingMaxAge,
		schedule:   cfg.SweepSchedule,
		logger:     logger,
	}
	if err := os.MkdirAll(s.stagingDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return s, nil
}

// Dir returns the upload directory.
func (s *ImageStore) Dir() string {
	return s.dir
}

// Stage encodes img as PNG into a new staging file.
func (s *ImageStore) Stage(img image.Image) (*Staged, error) {
	const op = "storage.Stage"

	path := filepath.Join(s.stagingDir, uuid.New().String()+imageExt)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return nil, apperror.New(apperror.KindStorage, op, fmt.Errorf("failed to create staging file: %w", err))
	}

	fail := func(msg string, err error) (*Staged, error) {
		file.Close()
		os.Remove(path)
		return nil, apperror.New(apperror.KindStorage, op, fmt.Errorf("%s: %w", msg, err))
	}

	if err := imaging.EncodePNG(file, img); err != nil {
		return fail("failed to encode image", err)
	}
	if err := file.Sync(); err != nil {
		return fail("failed to sync staging file", err)
	}
	info, err := file.Stat()
	if err != nil {
		return fail("failed to stat staging file", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(path)
		return nil, apperror.New(apperror.KindStorage, op, fmt.Errorf("failed to close staging file: %w", err))
	}

	return &Staged{Path: path, Size: info.Size()}, nil
}

// Promote moves a staged image to the public name for ts. An existing image
// is never overwritten.
func (s *ImageStore) Promote(st *Staged, ts int64) (*model.Image, error) {
	const op = "storage.Promote"

	filename := Filename(ts)
	target := filepath.Join(s.dir, filename)

	// A hard link fails on an existing target, unlike rename.
	err := os.Link(st.Path, target)
	switch {
	case errors.Is(err, fs.ErrExist):
		return nil, apperror.New(apperror.KindStorage, op, fmt.Errorf("image %s already exists", filename))
	case err != nil:
		if _, statErr := os.Lstat(target); statErr == nil {
			return nil, apperror.New(apperror.KindStorage, op, fmt.Errorf("image %s already exists", filename))
		}
		if err := os.Rename(st.Path, target); err != nil {
			return nil, apperror.New(apperror.KindStorage, op, fmt.Errorf("failed to promote image: %w", err))
		}
	default:
		if err := os.Remove(st.Path); err != nil {
			s.logger.Warning("Failed to remove staged image %s: %v", st.Path, err)
		}
	}

	return &model.Image{
		Timestamp: time.Unix(ts, 0).UTC(),
		Filename:  filename,
		FilePath:  target,
		FileSize:  st.Size,
	}, nil
}

// Discard removes a staged image that will not be promoted.
func (s *ImageStore) Discard(st *Staged) {
	if st == nil {
		return
	}
	if err := os.Remove(st.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Warning("Failed to discard staged image %s: %v", st.Path, err)
	}
}

// Remove deletes the promoted image for ts. A missing image is not an error.
func (s *ImageStore) Remove(ts int64) error {
	err := os.Remove(filepath.Join(s.dir, Filename(ts)))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return apperror.New(apperror.KindStorage, "storage.Remove", err)
	}
	return nil
}

// Path returns the file holding the image for ts and whether it exists.
func (s *ImageStore) Path(ts int64) (string, bool) {
	path := filepath.Join(s.dir, Filename(ts))
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	return path, true
}

// List returns the timestamps of all promoted images, oldest first. Files
// that do not follow the naming scheme are ignored.
func (s *ImageStore) List() ([]int64, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, apperror.New(apperror.KindStorage, "storage.List", err)
	}

	var timestamps []int64
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		ts, err := ParseFilename(entry.Name())
		if err != nil {
			continue
		}
		timestamps = append(timestamps, ts)
	}
	sort.Slice(timestamps, func(i, j int) bool { return timestamps[i] < timestamps[j] })
	return timestamps, nil
}

// SweepStaging deletes staging files older than maxAge and returns how many
// were removed.
func (s *ImageStore) SweepStaging(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.stagingDir)
	if err != nil {
		return 0, apperror.New(apperror.KindStorage, "storage.SweepStaging", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil || !info.Mode().IsRegular() || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.stagingDir, entry.Name())); err != nil {
			s.logger.Warning("Failed to sweep staged image %s: %v", entry.Name(), err)
			continue
		}
		removed++
	}
	return removed, nil
}

// Run sweeps the staging directory on the configured cron schedule until ctx
// is cancelled. An empty schedule disables the sweep.
func (s *ImageStore) Run(ctx context.Context) error {
	if s.schedule == "" {
		s.logger.Info("Staging sweep disabled")
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(s.schedule, s.sweep); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.schedule, err)
	}

	s.logger.Info("Staging sweep scheduled (%s, max age %s)", s.schedule, s.maxAge)
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

func (s *ImageStore) sweep() {
	removed, err := s.SweepStaging(s.maxAge)
	if err != nil {
		s.logger.Error("Staging sweep failed: %v", err)
		return
	}
	if removed > 0 {
		metrics.StagingFilesSwept.Add(float64(removed))
		s.logger.Info("Swept %d stale staged images", removed)
	}
}

// Filename returns the public file name for an image taken at ts.
func Filename(ts int64) string {
	return time.Unix(ts, 0).UTC().Format(FilenameLayout) + imageExt
}

// ParseFilename is the inverse of Filename.
func ParseFilename(name string) (int64, error) {
	base, ok := strings.CutSuffix(name, imageExt)
	if !ok {
		return 0, fmt.Errorf("%s: not a %s file", name, imageExt)
	}
	t, err := time.Parse(FilenameLayout, base)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return t.Unix(), nil
}
