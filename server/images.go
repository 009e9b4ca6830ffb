package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"line-comicbot/pkg/gallery"
)

type imageEntry struct {
	CreatedAt time.Time `json:"created_at"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	Size      int64     `json:"size"`
}

type imagesDebug struct {
	AllFiles   []string `json:"allFiles"`
	TotalFiles int      `json:"totalFiles"`
}

type imagesResponse struct {
	Debug   *imagesDebug `json:"debug,omitempty"`
	Images  []imageEntry `json:"images"`
	Count   int          `json:"count"`
	Success bool         `json:"success"`
}

func setCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "authorization, x-client-info, apikey, content-type")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
}

// handleImages lists converted images for the slideshow, newest first.
func (s *Server) handleImages(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
		return
	case http.MethodGet:
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ip := clientIP(r)
	if s.limiter != nil && !s.limiter.allow(ip) {
		s.logger.Warn("Gallery rate limit exceeded", "ip", ip)
		writeJSON(w, s.logger, http.StatusTooManyRequests, map[string]string{"error": "Too many requests"})
		return
	}

	start := time.Now()
	all, err := s.gallery.ListAll(r.Context())
	if err != nil {
		s.logger.Error("Failed to list images", "error", err)
		writeJSON(w, s.logger, http.StatusInternalServerError, map[string]string{
			"error":   "Failed to fetch files",
			"details": err.Error(),
		})
		return
	}

	resp := imagesResponse{Success: true, Images: []imageEntry{}}
	for _, m := range all {
		if !gallery.OriginalImages(m.Name) {
			continue
		}
		resp.Images = append(resp.Images, imageEntry{Name: m.Name, URL: m.URL, CreatedAt: m.CreatedAt, Size: m.Size})
	}
	sort.SliceStable(resp.Images, func(i, j int) bool {
		return resp.Images[i].CreatedAt.After(resp.Images[j].CreatedAt)
	})
	resp.Count = len(resp.Images)

	if resp.Count == 0 {
		names := make([]string, 0, len(all))
		for _, m := range all {
			names = append(names, m.Name)
		}
		resp.Debug = &imagesDebug{TotalFiles: len(all), AllFiles: names}
	}

	s.logger.Info("Gallery listed", "total", len(all), "images", resp.Count, "duration_ms", time.Since(start).Milliseconds())
	writeJSON(w, s.logger, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("Failed to write response", "error", err)
	}
}
