// Package api exposes the tracker's JSON HTTP handlers.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/TeioDM/Site-de-Registro-de-Atividades/internal/auth"
	"github.com/TeioDM/Site-de-Registro-de-Atividades/internal/domain"
	"github.com/TeioDM/Site-de-Registro-de-Atividades/internal/persistence"
)

const maxBodyBytes = 1 << 20

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service  *domain.Service
	pageSize int
}

// NewHandler builds a Handler. pageSize is the default history page size.
func NewHandler(service *domain.Service, pageSize int) *Handler {
	if pageSize <= 0 {
		pageSize = domain.DefaultPageSize
	}
	return &Handler{service: service, pageSize: pageSize}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/auth/signup", h.signUp)
	mux.HandleFunc("/v1/auth/login", h.signIn)
	mux.HandleFunc("/v1/auth/user", h.currentUser)
	mux.HandleFunc("/v1/auth/signout", h.signOut)
	mux.HandleFunc("/v1/profiles/", h.profiles)
	mux.HandleFunc("/v1/activities", h.activities)
	mux.HandleFunc("/v1/activity-logs", h.activityLogs)
	mux.HandleFunc("/v1/activity-logs/recent", h.recentActivityLogs)
	mux.HandleFunc("/v1/stats", h.stats)
	mux.HandleFunc("/v1/dashboard", h.dashboard)
	mux.HandleFunc("/v1/leaderboard", h.leaderboard)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) signUp(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req SignUpRequest
	if !decodeBody(w, r, &req) {
		return
	}

	profile, token, err := h.service.SignUp(r.Context(), domain.SignUpInput{
		Email:    req.Email,
		Password: req.Password,
		Username: req.Username,
		FullName: req.FullName,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	view := toProfileView(*profile)
	writeJSON(w, http.StatusCreated, SessionResponse{
		AccessToken: token.AccessToken,
		TokenType:   "Bearer",
		ExpiresAt:   token.ExpiresAt,
		User:        UserView{ID: profile.ID, Email: strings.ToLower(strings.TrimSpace(req.Email)), CreatedAt: profile.CreatedAt},
		Profile:     &view,
	})
}

func (h *Handler) signIn(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req SignInRequest
	if !decodeBody(w, r, &req) {
		return
	}

	account, token, err := h.service.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{
		AccessToken: token.AccessToken,
		TokenType:   "Bearer",
		ExpiresAt:   token.ExpiresAt,
		User:        UserView{ID: account.ID, Email: account.Email, CreatedAt: account.CreatedAt},
	})
}

func (h *Handler) currentUser(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	session, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	account, err := h.service.CurrentUser(r.Context(), session)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, UserView{ID: account.ID, Email: account.Email, CreatedAt: account.CreatedAt})
}

func (h *Handler) signOut(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	session, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	if err := h.service.SignOut(r.Context(), session); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// profiles serves /v1/profiles/me, /v1/profiles/{id} and /v1/profiles/{id}/summary.
func (h *Handler) profiles(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFrom(w, r)
	if !ok {
		return
	}

	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/profiles/"), "/")
	parts := strings.Split(rest, "/")
	if rest == "" || len(parts) > 2 || (len(parts) == 2 && parts[1] != "summary") {
		writeError(w, http.StatusNotFound, "not_found", "unknown profile resource")
		return
	}

	id := parts[0]
	if id == "me" {
		id = session.UserID
	}

	if len(parts) == 2 {
		if !allowMethod(w, r, http.MethodGet) {
			return
		}
		summary, err := h.service.ProfileSummary(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ProfileSummaryView{
			Profile:       toProfileView(summary.Profile),
			TotalPoints:   summary.TotalPoints,
			ActivityCount: summary.ActivityCount,
			Rank:          summary.Rank,
		})
		return
	}

	switch r.Method {
	case http.MethodGet:
		profile, err := h.service.GetProfile(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toProfileView(*profile))
	case http.MethodPut, http.MethodPatch:
		if id != session.UserID {
			writeError(w, http.StatusForbidden, "forbidden", "profiles can only be edited by their owner")
			return
		}
		if !requireScope(w, r, auth.ScopeProfileWrite) {
			return
		}
		var req UpdateProfileRequest
		if !decodeBody(w, r, &req) {
			return
		}
		profile, err := h.service.UpdateProfile(r.Context(), session, domain.ProfilePatch{
			Username:  req.Username,
			FullName:  req.FullName,
			AvatarURL: req.AvatarURL,
			Bio:       req.Bio,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toProfileView(*profile))
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) activities(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	if _, ok := sessionFrom(w, r); !ok {
		return
	}
	if !requireScope(w, r, auth.ScopeActivitiesRead) {
		return
	}

	catalog := h.service.ListActivities(r.Context())
	items := make([]ActivityView, 0, len(catalog))
	for _, a := range catalog {
		items = append(items, ActivityView{
			ID:            a.ID,
			Name:          a.Name,
			Unit:          a.Unit,
			PointsPerUnit: a.PointsPerUnit,
			IconEmoji:     a.IconEmoji,
		})
	}
	writeJSON(w, http.StatusOK, ListActivitiesResponse{Items: items})
}

func (h *Handler) activityLogs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.recordActivity(w, r)
	case http.MethodGet:
		h.listActivityLogs(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) recordActivity(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	if !requireScope(w, r, auth.ScopeActivitiesWrite) {
		return
	}

	var req RecordActivityRequest
	if !decodeBody(w, r, &req) {
		return
	}

	log, err := h.service.RecordActivity(r.Context(), session, domain.RecordActivityInput{
		ActivityID: req.ActivityID,
		Amount:     req.Amount,
		Notes:      req.Notes,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, RecordActivityResponse{
		Log:     toActivityLogView(*log),
		Refresh: h.service.RefreshGeneration(),
	})
}

func (h *Handler) listActivityLogs(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	if !requireScope(w, r, auth.ScopeActivitiesRead) {
		return
	}
	userID, ok := ownUserID(w, r, session)
	if !ok {
		return
	}

	query := r.URL.Query()
	size := h.pageSize
	if raw := query.Get("page_size"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "validation_failed", "page_size must be a positive integer")
			return
		}
		size = domain.ClampLimit(parsed)
	}

	if token := query.Get("cursor"); token != "" {
		cursor, err := persistence.DecodeCursor(token)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
			return
		}
		logs, next := h.service.ActivityLogsAfter(r.Context(), userID, cursor, size)
		writeJSON(w, http.StatusOK, ListActivityLogsResponse{
			Items:      toActivityLogViews(logs),
			PageSize:   size,
			HasMore:    next != nil,
			NextCursor: persistence.EncodeCursor(next),
		})
		return
	}

	page := 1
	if raw := query.Get("page"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "validation_failed", "page must be a positive integer")
			return
		}
		page = parsed
	}

	logs := h.service.ActivityHistory(r.Context(), userID, domain.Page{Number: page, Size: size})
	resp := ListActivityLogsResponse{
		Items:    toActivityLogViews(logs),
		Page:     page,
		PageSize: size,
		HasMore:  len(logs) == size,
	}
	if resp.HasMore {
		last := logs[len(logs)-1]
		resp.NextCursor = persistence.EncodeCursor(&domain.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) recentActivityLogs(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	session, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	if !requireScope(w, r, auth.ScopeActivitiesRead) {
		return
	}
	userID, ok := ownUserID(w, r, session)
	if !ok {
		return
	}

	limit := domain.DefaultPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "validation_failed", "limit must be a positive integer")
			return
		}
		limit = domain.ClampLimit(parsed)
	}
	logs := h.service.RecentActivityLogs(r.Context(), userID, limit)
	writeJSON(w, http.StatusOK, ListActivityLogsResponse{
		Items:    toActivityLogViews(logs),
		PageSize: limit,
	})
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	session, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	if !requireScope(w, r, auth.ScopeActivitiesRead) {
		return
	}
	userID, ok := ownUserID(w, r, session)
	if !ok {
		return
	}

	stats := h.service.ActivityStats(r.Context(), userID)
	items := make([]ActivityStatView, 0, len(stats))
	for _, s := range stats {
		items = append(items, ActivityStatView{
			Name:        s.Name,
			IconEmoji:   s.IconEmoji,
			Unit:        s.Unit,
			Count:       s.Count,
			TotalAmount: s.TotalAmount,
		})
	}
	writeJSON(w, http.StatusOK, StatsResponse{Items: items})
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	session, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	if !requireScope(w, r, auth.ScopeActivitiesRead) {
		return
	}

	dash, err := h.service.Dashboard(r.Context(), session)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	resp := DashboardResponse{
		TotalPoints:   dash.TotalPoints,
		ActivityCount: dash.ActivityCount,
		Rank:          dash.Rank,
		Refresh:       dash.Refresh,
	}
	if dash.Profile != nil {
		view := toProfileView(*dash.Profile)
		resp.Profile = &view
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) leaderboard(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	session, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	if !requireScope(w, r, auth.ScopeActivitiesRead) {
		return
	}

	board := h.service.Leaderboard(r.Context(), session)
	items := make([]LeaderboardEntryView, 0, len(board.Entries))
	for _, e := range board.Entries {
		items = append(items, LeaderboardEntryView{
			Rank:          e.Rank,
			ID:            e.ID,
			Username:      e.Username,
			FullName:      e.FullName,
			AvatarURL:     e.AvatarURL,
			TotalPoints:   e.TotalPoints,
			ActivityCount: e.ActivityCount,
			CurrentUser:   e.ID == board.CurrentUserID,
		})
	}
	writeJSON(w, http.StatusOK, LeaderboardResponse{
		Items:   items,
		MyRank:  board.CurrentUserRank,
		Refresh: board.Refresh,
	})
}

func sessionFrom(w http.ResponseWriter, r *http.Request) (domain.Session, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return domain.Session{}, false
	}
	return claims.Session(), true
}

func requireScope(w http.ResponseWriter, r *http.Request, scope string) bool {
	claims, _ := auth.FromContext(r.Context())
	if !claims.HasScope(scope) {
		writeError(w, http.StatusForbidden, "forbidden", "scope "+scope+" required")
		return false
	}
	return true
}

// ownUserID resolves the user_id query parameter, which defaults to and must
// match the session user.
func ownUserID(w http.ResponseWriter, r *http.Request, session domain.Session) (string, bool) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		return session.UserID, true
	}
	if userID != session.UserID {
		writeError(w, http.StatusForbidden, "forbidden", "activity logs are private to their owner")
		return "", false
	}
	return userID, true
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return false
	}
	return true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return false
	}
	return true
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, domain.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid_credentials", err.Error())
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, map[string]string{
		"type":   code,
		"detail": detail,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
