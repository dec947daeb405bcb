package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	rankingsvc "github.com/bryanwahyu/clickrank/src/app/ranking"
	"github.com/bryanwahyu/clickrank/src/domain/ranking"
	"github.com/bryanwahyu/clickrank/src/domain/shared"
)

const maxRequestBody = 4 << 10

type RankingEntryResponse struct {
	ID        int64     `json:"id"`
	Nickname  string    `json:"nickname"`
	Score     int       `json:"score"`
	CreatedAt time.Time `json:"created_at"`
}

type ListRankingsResponse struct {
	Success bool                   `json:"success"`
	Data    []RankingEntryResponse `json:"data"`
	Message string                 `json:"message,omitempty"`
}

type SubmitScoreRequest struct {
	Nickname *string  `json:"nickname"`
	Score    *float64 `json:"score"`
}

type SubmitScoreResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Outcome  string `json:"outcome,omitempty"`
	Score    int    `json:"score"`
	Best     int    `json:"best"`
	Previous *int   `json:"previous,omitempty"`
	Title    string `json:"title,omitempty"`
}

type RankResponse struct {
	Success bool              `json:"success"`
	Data    *RankDataResponse `json:"data,omitempty"`
	Message string            `json:"message,omitempty"`
}

type RankDataResponse struct {
	Entry    RankingEntryResponse `json:"entry"`
	Position int                  `json:"position"`
}

type StatsResponse struct {
	Success  bool   `json:"success"`
	Players  int    `json:"players"`
	TopScore int    `json:"top_score"`
	Message  string `json:"message,omitempty"`
}

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (s *Server) handleListRankings(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.writeJSON(w, http.StatusBadRequest, ListRankingsResponse{
				Data:    []RankingEntryResponse{},
				Message: "limit must be a positive integer",
			})
			return
		}
		limit = n
	}

	entries, err := s.cfg.RankingService.List(r.Context(), limit)
	if err != nil {
		status, message := s.errorStatus(r.Context(), err, "Could not load rankings.")
		s.writeJSON(w, status, ListRankingsResponse{Data: []RankingEntryResponse{}, Message: message})
		return
	}

	data := make([]RankingEntryResponse, 0, len(entries))
	for _, e := range entries {
		data = append(data, toEntryResponse(e))
	}
	s.writeJSON(w, http.StatusOK, ListRankingsResponse{Success: true, Data: data, Message: "Rankings loaded."})
}

func (s *Server) handleSubmitScore(w http.ResponseWriter, r *http.Request) {
	var req SubmitScoreRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeEnvelope(w, http.StatusBadRequest, false, "Body must be JSON with a nickname and a numeric score.")
		return
	}
	if req.Nickname == nil {
		writeEnvelope(w, http.StatusBadRequest, false, "Nickname is required.")
		return
	}
	if req.Score == nil {
		writeEnvelope(w, http.StatusBadRequest, false, "Score must be a number.")
		return
	}
	score := *req.Score
	if score != math.Trunc(score) || math.IsInf(score, 0) {
		writeEnvelope(w, http.StatusBadRequest, false, "Score must be a whole number.")
		return
	}
	if score < math.MinInt32 || score > math.MaxInt32 {
		writeEnvelope(w, http.StatusBadRequest, false, "Score is out of range.")
		return
	}

	result, err := s.cfg.RankingService.Submit(r.Context(), rankingsvc.SubmitCommand{
		Nickname: *req.Nickname,
		Score:    int(score),
	})
	if err != nil {
		status, message := s.errorStatus(r.Context(), err, "Could not save your score.")
		writeEnvelope(w, status, false, message)
		return
	}

	outcome := result.Outcome
	s.submissionCounter.WithLabelValues(outcome.Kind.String()).Inc()

	resp := SubmitScoreResponse{
		Success: true,
		Message: outcomeMessage(outcome),
		Outcome: outcome.Kind.String(),
		Score:   int(score),
		Best:    outcome.Best(),
		Title:   result.Title,
	}
	if outcome.Kind != ranking.OutcomeCreated {
		previous := outcome.Previous
		resp.Previous = &previous
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetRank(w http.ResponseWriter, r *http.Request) {
	nickname := mux.Vars(r)["nickname"]

	result, err := s.cfg.RankingService.Rank(r.Context(), nickname)
	if err != nil {
		status, message := s.errorStatus(r.Context(), err, "Could not load the ranking.")
		s.writeJSON(w, status, RankResponse{Message: message})
		return
	}
	s.writeJSON(w, http.StatusOK, RankResponse{
		Success: true,
		Data: &RankDataResponse{
			Entry:    toEntryResponse(result.Entry),
			Position: result.Position,
		},
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.cfg.RankingService.Stats(r.Context())
	if err != nil {
		status, message := s.errorStatus(r.Context(), err, "Could not load stats.")
		s.writeJSON(w, status, StatsResponse{Message: message})
		return
	}
	s.writeJSON(w, http.StatusOK, StatsResponse{Success: true, Players: stats.Players, TopScore: stats.TopScore})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.cfg.RankingService.Ping(ctx); err != nil {
		s.cfg.Logger.Warn("health check failed", zap.Error(err))
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "clickrank"})
}

// errorStatus maps the error taxonomy to a status and a client-safe message.
// Details of storage and internal faults are logged, never returned.
func (s *Server) errorStatus(ctx context.Context, err error, fallback string) (int, string) {
	switch {
	case errors.Is(err, shared.ErrInvalidInput):
		return http.StatusBadRequest, invalidInputMessage(err)
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound, "No score recorded for this nickname."
	case errors.Is(err, shared.ErrStorageUnavailable):
		s.cfg.Logger.Warn("storage unavailable", zap.Error(err), zap.String("request_id", requestIDFrom(ctx)))
		return http.StatusInternalServerError, fallback + " Please try again."
	default:
		s.cfg.Logger.Error("internal error", zap.Error(err), zap.String("request_id", requestIDFrom(ctx)))
		return http.StatusInternalServerError, fallback
	}
}

func invalidInputMessage(err error) string {
	switch {
	case errors.Is(err, ranking.ErrNicknameRequired):
		return "Nickname is required."
	case errors.Is(err, ranking.ErrNicknameTooLong):
		return "Nickname is too long."
	case errors.Is(err, ranking.ErrScoreOutOfRange):
		return "Score is out of range."
	case errors.Is(err, ranking.ErrInvalidLimit):
		return "limit must be a positive integer"
	default:
		return "Invalid request."
	}
}

func outcomeMessage(o ranking.Outcome) string {
	switch o.Kind {
	case ranking.OutcomeCreated:
		return fmt.Sprintf("First game recorded! %d points!", o.Best())
	case ranking.OutcomeImproved:
		return fmt.Sprintf("New record! %d points!", o.Best())
	default:
		return fmt.Sprintf("Good game! Your record is still %d points.", o.Best())
	}
}

func toEntryResponse(e ranking.Entry) RankingEntryResponse {
	return RankingEntryResponse{
		ID:        e.ID,
		Nickname:  e.Nickname.String(),
		Score:     e.Score,
		CreatedAt: e.CreatedAt,
	}
}

func writeEnvelope(w http.ResponseWriter, status int, success bool, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: success, Message: message})
}
