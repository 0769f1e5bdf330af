package handler

import (
	"net/http"
	"strconv"

	"camviewer/internal/dto"
	"camviewer/internal/logger"
	"camviewer/internal/model"
	"camviewer/internal/repository"
)

const (
	defaultRecentLimit = 50
	maxRecentLimit     = 1000
)

// RecentStatsHandler returns the newest frame and stats samples: GET ?limit=N.
func RecentStatsHandler(sampleRepo repository.SampleRepository, statsRepo repository.StatsRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
		if limit <= 0 || err != nil {
			limit = defaultRecentLimit
		}
		if limit > maxRecentLimit {
			limit = maxRecentLimit
		}

		frames, err := sampleRepo.Recent(limit)
		if err != nil {
			logger.Error("Failed to load frame samples: %v", err)
			http.Error(w, "Failed to load samples", http.StatusInternalServerError)
			return
		}
		stats, err := statsRepo.Recent(limit)
		if err != nil {
			logger.Error("Failed to load stats samples: %v", err)
			http.Error(w, "Failed to load samples", http.StatusInternalServerError)
			return
		}

		if frames == nil {
			frames = []model.FrameSample{}
		}
		if stats == nil {
			stats = []model.StatsSample{}
		}
		writeJSON(w, dto.RecentStats{Frames: frames, Stats: stats}, logger)
	}
}

// StatsSummaryHandler returns aggregates over every stored sample.
func StatsSummaryHandler(statsRepo repository.StatsRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := statsRepo.Summary()
		if err != nil {
			logger.Error("Failed to summarize samples: %v", err)
			http.Error(w, "Failed to summarize samples", http.StatusInternalServerError)
			return
		}
		writeJSON(w, summary, logger)
	}
}
