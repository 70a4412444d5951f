package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/prepwise/progression-engine/internal/application/command"
	"github.com/prepwise/progression-engine/internal/application/query"
	"github.com/prepwise/progression-engine/internal/domain/progression"
	"github.com/prepwise/progression-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.health.Check(r.Context())
	if !status.Healthy {
		writeJSON(w, r, http.StatusServiceUnavailable, status)
		return
	}
	writeJSON(w, r, http.StatusOK, status)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := s.health.Check(r.Context())
	if !status.Ready {
		writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{
			"status": "not_ready",
			"reason": status.Message,
		})
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

// ══════════════════════════════════════════════════════════════════════════════
// SESSIONS & PROGRESSION
// ══════════════════════════════════════════════════════════════════════════════

// RecordSessionRequest is the body of POST /api/v1/sessions.
type RecordSessionRequest struct {
	SessionID       string  `json:"session_id,omitempty"`
	Score           float64 `json:"score"`
	DurationMinutes int     `json:"duration_minutes"`
}

// RecordSessionResponse reports the reward of a session.
type RecordSessionResponse struct {
	SessionID     string                `json:"session_id"`
	Result        *progression.XPResult `json:"result,omitempty"`
	RewardPending bool                  `json:"reward_pending"`
	Replayed      bool                  `json:"replayed"`
}

func (s *Server) handleRecordSession(w http.ResponseWriter, r *http.Request) {
	if s.services.Sessions == nil {
		notConfigured(w, r)
		return
	}
	var req RecordSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	uid, _ := UserIDFromContext(r.Context())

	res, err := s.services.Sessions.Handle(r.Context(), command.RecordSessionCommand{
		UserID:          uid,
		SessionID:       req.SessionID,
		Score:           req.Score,
		DurationMinutes: req.DurationMinutes,
		CorrelationID:   requestID(r),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	status := http.StatusCreated
	if res.RewardPending {
		status = http.StatusAccepted
	}
	writeJSON(w, r, status, RecordSessionResponse{
		SessionID:     res.SessionID,
		Result:        res.Result,
		RewardPending: res.RewardPending,
		Replayed:      res.Replayed,
	})
}

func (s *Server) handleGetProgression(w http.ResponseWriter, r *http.Request) {
	if s.services.Progression == nil {
		notConfigured(w, r)
		return
	}
	uid, _ := UserIDFromContext(r.Context())

	view, err := s.services.Progression.Handle(r.Context(), query.GetProgressionQuery{
		UserID:    uid,
		SkipCache: r.URL.Query().Get("fresh") == "true",
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, view)
}

// ══════════════════════════════════════════════════════════════════════════════
// QUOTA
// ══════════════════════════════════════════════════════════════════════════════

// QuotaCheckResponse is the admission decision returned to clients.
type QuotaCheckResponse struct {
	Allowed   bool       `json:"allowed"`
	Unlimited bool       `json:"unlimited"`
	Remaining int        `json:"remaining"`
	ResetsAt  *time.Time `json:"resets_at,omitempty"`
	FailOpen  bool       `json:"fail_open,omitempty"`
}

func (s *Server) handleCheckQuota(w http.ResponseWriter, r *http.Request) {
	if s.services.Quota == nil {
		notConfigured(w, r)
		return
	}
	uid, _ := UserIDFromContext(r.Context())

	res, err := s.services.Quota.Handle(r.Context(), command.CheckQuotaCommand{UserID: uid})
	if err != nil {
		writeError(w, r, err)
		return
	}

	// a denial is a normal answer, not an error
	writeJSON(w, r, http.StatusOK, QuotaCheckResponse{
		Allowed:   res.Allowed,
		Unlimited: res.Unlimited,
		Remaining: res.Remaining,
		ResetsAt:  res.ResetsAt,
		FailOpen:  res.FailOpen,
	})
}

func (s *Server) handleGetQuota(w http.ResponseWriter, r *http.Request) {
	if s.services.QuotaStatus == nil {
		notConfigured(w, r)
		return
	}
	uid, _ := UserIDFromContext(r.Context())

	status, err := s.services.QuotaStatus.Handle(r.Context(), query.GetQuotaStatusQuery{UserID: uid})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, status)
}

// ══════════════════════════════════════════════════════════════════════════════
// ROADMAP
// ══════════════════════════════════════════════════════════════════════════════

// CreateIdeaRequest is the body of POST /api/v1/roadmap/ideas. The author is
// the authenticated user.
type CreateIdeaRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Audience    string `json:"audience"`
	Status      string `json:"status"`
}

func (s *Server) handleCreateIdea(w http.ResponseWriter, r *http.Request) {
	if s.services.CreateIdea == nil {
		notConfigured(w, r)
		return
	}
	var req CreateIdeaRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	uid, _ := UserIDFromContext(r.Context())

	idea, err := s.services.CreateIdea.Handle(r.Context(), command.CreateIdeaCommand{
		Title:        req.Title,
		Description:  req.Description,
		Audience:     req.Audience,
		Status:       req.Status,
		CreatedByUID: uid,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, query.ToIdeaDTO(idea))
}

func (s *Server) handleListIdeas(w http.ResponseWriter, r *http.Request) {
	if s.services.Feed == nil {
		notConfigured(w, r)
		return
	}
	viewer, _ := UserIDFromContext(r.Context())

	feed, err := s.services.Feed.Handle(r.Context(), query.GetRoadmapFeedQuery{
		ViewerID: viewer,
		Limit:    queryInt(r, "limit", 0),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, feed)
}

func (s *Server) handleToggleVote(w http.ResponseWriter, r *http.Request) {
	if s.services.Vote == nil {
		notConfigured(w, r)
		return
	}
	uid, _ := UserIDFromContext(r.Context())
	ideaID := chi.URLParam(r, "id")

	res, err := s.services.Vote.Handle(r.Context(), command.ToggleVoteCommand{IdeaID: ideaID, UserID: uid})
	if err != nil {
		writeError(w, r, err)
		return
	}
	logger.FromContext(r.Context()).Debug("vote toggled", logger.IdeaID(ideaID), logger.Bool("upvoted", res.Upvoted))
	writeJSON(w, r, http.StatusOK, res)
}

func notConfigured(w http.ResponseWriter, r *http.Request) {
	writeJSONError(w, r, http.StatusNotImplemented, "not_implemented", "endpoint is not configured")
}
