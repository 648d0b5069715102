package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ctf-hub/ctf-community-hub/internal/application/query"
	"github.com/ctf-hub/ctf-community-hub/internal/application/verify"
	"github.com/ctf-hub/ctf-community-hub/internal/application/workflow"
	"github.com/ctf-hub/ctf-community-hub/internal/domain/shared"
)

const maxLeaderboardLimit = 100

// Submitter records solve submissions. Satisfied by workflow.Approval.
type Submitter interface {
	Submit(ctx context.Context, in workflow.SubmitInput) (int64, error)
}

// APIConfig names the services the API exposes. Verify may be nil when
// verification is not configured.
type APIConfig struct {
	Leaderboard *query.Leaderboard
	Stats       *query.Stats
	Ladder      *query.RankLadder
	Roles       *query.Roles
	Submit      Submitter
	Registry    *workflow.Registry
	Verify      *verify.Service
}

// API serves the read endpoints, solve submission, the competition registry
// and the verification flow.
type API struct {
	cfg    APIConfig
	logger *slog.Logger
}

// NewAPI wires the API handlers.
func NewAPI(cfg APIConfig, logger *slog.Logger) *API {
	return &API{cfg: cfg, logger: logger.With("component", "api")}
}

// Routes mounts the API under the given router.
func (a *API) Routes(r chi.Router) {
	r.Get("/leaderboard", a.handleLeaderboard)
	r.Get("/ladder", a.handleLadder)
	r.Get("/users/{id}/stats", a.handleUserStats)
	r.Get("/users/{id}/roles", a.handleUserRoles)
	r.Post("/solves", a.handleSubmitSolve)
	r.Post("/competitions", a.handleRegisterCompetition)
	r.Post("/challenges", a.handleAnnounceChallenge)
	if a.cfg.Verify != nil {
		r.Post("/verify/request", a.handleVerifyRequest)
		r.Post("/verify/redeem", a.handleVerifyRedeem)
	}
}

type leaderboardRow struct {
	Position int    `json:"position"`
	UserID   int64  `json:"user_id,string"`
	Points   string `json:"points"`
}

func (a *API) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxLeaderboardLimit {
			writeError(w, shared.NewDomainError("api", "Leaderboard", shared.ErrInvalidInput,
				"limit must be between 1 and "+strconv.Itoa(maxLeaderboardLimit)))
			return
		}
		limit = n
	}

	entries, err := a.cfg.Leaderboard.Top(r.Context(), limit)
	if err != nil {
		a.logger.Error("leaderboard query failed", "error", err)
		writeError(w, err)
		return
	}

	rows := make([]leaderboardRow, len(entries))
	for i, e := range entries {
		rows[i] = leaderboardRow{Position: e.Position, UserID: e.UserID, Points: e.PointsDisplay}
	}
	writeJSON(w, http.StatusOK, map[string]any{"leaderboard": rows})
}

type ladderRow struct {
	Index  int    `json:"index"`
	Name   string `json:"name"`
	Cutoff string `json:"cutoff"`
}

func (a *API) handleLadder(w http.ResponseWriter, r *http.Request) {
	rungs, err := a.cfg.Ladder.Current(r.Context())
	if err != nil {
		a.logger.Error("ladder query failed", "error", err)
		writeError(w, err)
		return
	}

	rows := make([]ladderRow, len(rungs))
	for i, rung := range rungs {
		rows[i] = ladderRow{Index: rung.Index, Name: rung.Name, Cutoff: rung.CutoffDisplay}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ladder": rows})
}

type userStatsResponse struct {
	UserID           int64          `json:"user_id,string"`
	Verified         bool           `json:"verified"`
	Points           string         `json:"points"`
	Rank             string         `json:"rank,omitempty"`
	SolvesByCategory map[string]int `json:"solves_by_category"`
	SolvedChallenges []solvedRow    `json:"solved_challenges"`
}

type solvedRow struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

func (a *API) handleUserStats(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	stats, err := a.cfg.Stats.ForUser(r.Context(), userID)
	if err != nil {
		if !shared.IsNotFound(err) {
			a.logger.Error("stats query failed", "user_id", userID, "error", err)
		}
		writeError(w, err)
		return
	}

	resp := userStatsResponse{
		UserID:           stats.UserID,
		Verified:         stats.Verified,
		Points:           stats.PointsDisplay,
		Rank:             stats.RankName,
		SolvesByCategory: stats.SolvesByCategory,
		SolvedChallenges: make([]solvedRow, len(stats.SolvedChallenges)),
	}
	for i, ch := range stats.SolvedChallenges {
		resp.SolvedChallenges[i] = solvedRow{ID: ch.ID, Name: ch.Name, Category: ch.Category.String()}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleUserRoles(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	ent, err := a.cfg.Roles.ForUser(r.Context(), userID)
	if err != nil {
		if !shared.IsNotFound(err) {
			a.logger.Error("roles query failed", "user_id", userID, "error", err)
		}
		writeError(w, err)
		return
	}

	roles := make([]string, 0, 2)
	if ent.Verified {
		roles = append(roles, verify.MemberRoleName)
	}
	if ent.RankRole != "" {
		roles = append(roles, ent.RankRole)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":  strconv.FormatInt(ent.UserID, 10),
		"verified": ent.Verified,
		"roles":    roles,
	})
}

type submitSolveBody struct {
	ChallengeID int64    `json:"challenge_id"`
	Flag        string   `json:"flag"`
	SubmitterID int64    `json:"submitter_id,string"`
	TeammateIDs []string `json:"teammate_ids"`
}

func (a *API) handleSubmitSolve(w http.ResponseWriter, r *http.Request) {
	var body submitSolveBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, shared.NewDomainError("api", "SubmitSolve", shared.ErrInvalidInput,
			"malformed request body"))
		return
	}

	teammates := make([]int64, 0, len(body.TeammateIDs))
	for _, raw := range body.TeammateIDs {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			writeError(w, shared.NewDomainError("api", "SubmitSolve", shared.ErrInvalidID,
				"teammate ids must be positive integers"))
			return
		}
		teammates = append(teammates, id)
	}

	solveID, err := a.cfg.Submit.Submit(r.Context(), workflow.SubmitInput{
		ChallengeID: body.ChallengeID,
		Flag:        body.Flag,
		SubmitterID: body.SubmitterID,
		TeammateIDs: teammates,
	})
	if err != nil {
		if !shared.IsValidation(err) && !shared.IsNotFound(err) {
			a.logger.Error("solve submission failed", "challenge_id", body.ChallengeID, "error", err)
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"solve_id": solveID})
}

type registerCompetitionBody struct {
	ChannelRef int64  `json:"channel_ref,string"`
	Name       string `json:"name"`
}

func (a *API) handleRegisterCompetition(w http.ResponseWriter, r *http.Request) {
	var body registerCompetitionBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, shared.NewDomainError("api", "RegisterCompetition", shared.ErrInvalidInput,
			"malformed request body"))
		return
	}

	id, err := a.cfg.Registry.RegisterCompetition(r.Context(), body.ChannelRef, body.Name)
	if err != nil {
		if !shared.IsValidation(err) && !shared.IsConstraintViolation(err) {
			a.logger.Error("competition registration failed", "error", err)
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"competition_id": id})
}

type announceChallengeBody struct {
	ChannelRef int64  `json:"channel_ref,string"`
	Name       string `json:"name"`
	Category   string `json:"category"`
}

func (a *API) handleAnnounceChallenge(w http.ResponseWriter, r *http.Request) {
	var body announceChallengeBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, shared.NewDomainError("api", "AnnounceChallenge", shared.ErrInvalidInput,
			"malformed request body"))
		return
	}

	id, err := a.cfg.Registry.AnnounceChallenge(r.Context(), body.ChannelRef, body.Name, body.Category)
	if err != nil {
		if !shared.IsValidation(err) && !shared.IsConstraintViolation(err) {
			a.logger.Error("challenge announcement failed", "error", err)
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"challenge_id": id})
}

type verifyRequestBody struct {
	UserID int64  `json:"user_id,string"`
	Email  string `json:"email"`
}

func (a *API) handleVerifyRequest(w http.ResponseWriter, r *http.Request) {
	var body verifyRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.UserID == 0 {
		writeError(w, shared.NewDomainError("api", "VerifyRequest", shared.ErrInvalidInput,
			"body must carry user_id and email"))
		return
	}

	if err := a.cfg.Verify.Request(r.Context(), body.UserID, body.Email); err != nil {
		if !shared.IsValidation(err) {
			a.logger.Error("verification request failed", "user_id", body.UserID, "error", err)
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "token sent"})
}

type verifyRedeemBody struct {
	Token string `json:"token"`
}

func (a *API) handleVerifyRedeem(w http.ResponseWriter, r *http.Request) {
	var body verifyRedeemBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Token == "" {
		writeError(w, shared.NewDomainError("api", "VerifyRedeem", shared.ErrInvalidInput,
			"body must carry a token"))
		return
	}

	userID, err := a.cfg.Verify.Redeem(r.Context(), body.Token)
	if err != nil {
		if !shared.IsValidation(err) {
			a.logger.Error("verification redeem failed", "error", err)
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "verified",
		"user_id": strconv.FormatInt(userID, 10),
	})
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.NewDomainError("api", "PathID", shared.ErrInvalidID,
			"user id must be a positive integer")
	}
	return id, nil
}
