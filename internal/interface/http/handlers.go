package http

import (
	"net/http"

	"github.com/alem-hub/course-rewards/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":    "course-rewards",
		"version": s.deps.Version,
		"endpoints": map[string]string{
			"health":   "/health",
			"metrics":  "/metrics",
			"total":    "/v1/rewards/total",
			"settings": "/v1/rewards/settings",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Healthy {
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		writeJSON(w, http.StatusOK, status)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"uptime": s.Uptime().String(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": status.Message,
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// REWARD HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetTotal handles GET /v1/rewards/total
func (s *Server) handleGetTotal(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"total_rewards_minted": s.deps.Rewards.TotalRewardsMinted().Dec(),
	})
}

// handleGetSettings handles GET /v1/rewards/settings
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"admin":      s.deps.Rewards.Admin().String(),
		"multiplier": s.deps.Rewards.RewardMultiplier(),
	})
}

// handleGetCourseConfig handles GET /v1/courses/{course}/config
func (s *Server) handleGetCourseConfig(w http.ResponseWriter, r *http.Request) {
	course, ok := courseParam(w, r)
	if !ok {
		return
	}

	cfg, found := s.deps.Rewards.CourseRewardConfig(course)
	if !found {
		writeJSONError(w, http.StatusNotFound, "course_not_found", "No reward configuration for course")
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// handleGetCompletion handles GET /v1/courses/{course}/users/{user}/completion
func (s *Server) handleGetCompletion(w http.ResponseWriter, r *http.Request) {
	course, ok := courseParam(w, r)
	if !ok {
		return
	}
	user := shared.Identity(r.PathValue("user"))

	rec, found := s.deps.Rewards.UserCompletion(user, course)
	if !found {
		writeJSONError(w, http.StatusNotFound, "completion_not_found", "User has not completed course")
		return
	}
	awarded := "0"
	if rec.Reward != nil {
		awarded = rec.Reward.Dec()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"completed":      rec.Completed,
		"score":          rec.Score,
		"timestamp":      rec.Timestamp,
		"cert_id":        rec.CertID,
		"tokens_awarded": awarded,
	})
}

// handleGetEnrollment handles GET /v1/courses/{course}/users/{user}/enrollment
func (s *Server) handleGetEnrollment(w http.ResponseWriter, r *http.Request) {
	course, ok := courseParam(w, r)
	if !ok {
		return
	}
	user := shared.Identity(r.PathValue("user"))

	writeJSON(w, http.StatusOK, map[string]bool{
		"enrolled": s.deps.Rewards.IsUserEnrolled(user, course),
	})
}

func courseParam(w http.ResponseWriter, r *http.Request) (shared.CourseID, bool) {
	course, err := shared.ParseCourseID(r.PathValue("course"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_course_id", err.Error())
		return 0, false
	}
	return course, true
}
