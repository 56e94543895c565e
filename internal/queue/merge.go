package queue

import (
	"time"

	"fleet-alert-service/pkg/models"
)

// Merge combines freshly classified alerts with the existing queue. Incoming
// alerts are concatenated ahead of the queue, then a forward scan collapses
// duplicates: two entries with the same (vehicle, type) whose timestamps fall
// within the window count as one. Windowing is per-comparison, not transitive,
// so recurring violations more than a window apart each survive.
//
// When a fresh detection collides with an entry that was already acknowledged
// or promoted, the flagged entry wins so its state survives re-detection.
func Merge(incoming, existing []models.Alert, window time.Duration) []models.Alert {
	combined := make([]models.Alert, 0, len(incoming)+len(existing))
	combined = append(combined, incoming...)
	combined = append(combined, existing...)

	merged := make([]models.Alert, 0, len(combined))
	for _, cand := range combined {
		idx := duplicateIndex(merged, cand, window)
		if idx < 0 {
			merged = append(merged, cand)
			continue
		}
		if flagged(cand) && !flagged(merged[idx]) {
			merged[idx] = cand
		}
	}

	return merged
}

// Cap truncates the queue to maxSize keeping the head, which holds the most
// recently merged entries.
func Cap(alerts []models.Alert, maxSize int) []models.Alert {
	if maxSize <= 0 || len(alerts) <= maxSize {
		return alerts
	}
	return alerts[:maxSize]
}

func duplicateIndex(merged []models.Alert, cand models.Alert, window time.Duration) int {
	for i, kept := range merged {
		if kept.VehicleID != cand.VehicleID || kept.Type != cand.Type {
			continue
		}
		diff := kept.DetectedAt.Sub(cand.DetectedAt)
		if diff < 0 {
			diff = -diff
		}
		if diff < window {
			return i
		}
	}
	return -1
}

func flagged(a models.Alert) bool {
	return a.Sent || a.SavedToDatabase
}
