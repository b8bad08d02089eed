package service

import (
	"context"
	"fmt"

	"rivermonitor/internal/repository"
	"rivermonitor/internal/service/storage"
)

// ReconcileReport lists where the image directory and the database disagree.
type ReconcileReport struct {
	// OrphanedImages have a file but no row.
	OrphanedImages []int64
	// MissingImages have a row but no file.
	MissingImages []int64
	// Removed counts orphaned images deleted.
	Removed int
}

// Reconcile compares stored rows with promoted images. With removeOrphans set,
// images without a row are deleted. Rows are never touched.
func Reconcile(ctx context.Context, repo repository.ObservationRepository, store *storage.ImageStore, removeOrphans bool) (*ReconcileReport, error) {
	rows, err := repo.Timestamps(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list rows: %w", err)
	}
	files, err := store.List()
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}

	inDB := make(map[int64]bool, len(rows))
	for _, ts := range rows {
		inDB[ts] = true
	}
	onDisk := make(map[int64]bool, len(files))
	for _, ts := range files {
		onDisk[ts] = true
	}

	report := &ReconcileReport{}
	for _, ts := range files {
		if !inDB[ts] {
			report.OrphanedImages = append(report.OrphanedImages, ts)
		}
	}
	for _, ts := range rows {
		if !onDisk[ts] {
			report.MissingImages = append(report.MissingImages, ts)
		}
	}

	if removeOrphans {
		for _, ts := range report.OrphanedImages {
			if err := store.Remove(ts); err != nil {
				return report, fmt.Errorf("failed to remove orphaned image %d: %w", ts, err)
			}
			report.Removed++
		}
	}
	return report, nil
}
