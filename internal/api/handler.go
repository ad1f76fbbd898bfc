// internal/api/handler.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/xid"

	"github-org-mirror/internal/auth"
	custom_errors "github-org-mirror/internal/errors"
	"github-org-mirror/internal/model"
	"github-org-mirror/internal/query"
)

const (
	stateCookie        = "oauth_state"
	dataRequestTimeout = 60 * time.Second
	defaultSearchLimit = 10
)

// Syncer runs and reports sync passes.
type Syncer interface {
	Sync(ctx context.Context, userID string) (model.SyncReport, error)
	Status(ctx context.Context, userID string) (model.SyncStatus, error)
}

// Integrations manages connected accounts.
type Integrations interface {
	UpsertIntegration(ctx context.Context, in model.Integration) (model.Integration, error)
	GetActiveIntegration(ctx context.Context, userID, provider string) (model.Integration, error)
	DeactivateIntegration(ctx context.Context, userID, provider string) error
}

// Collections reads mirrored data.
type Collections interface {
	List(ctx context.Context, userID, collection string, p query.ListParams) (query.ListResult, error)
	Search(ctx context.Context, userID, q string, limit int) ([]map[string]any, error)
}

// OAuthProvider runs the authorization code flow.
type OAuthProvider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (auth.Grant, error)
}

// Deps are the services the router serves. OAuth may be nil when no OAuth app is configured.
type Deps struct {
	Syncer         Syncer
	Integrations   Integrations
	Collections    Collections
	OAuth          OAuthProvider
	FrontendURL    string
	AllowedOrigins []string
	Logger         *slog.Logger
}

// Handler is the container for API dependencies.
type Handler struct {
	Deps
	logger *slog.Logger
}

// NewRouter creates and configures a new chi router with all API routes.
func NewRouter(d Deps) http.Handler {
	h := &Handler{Deps: d, logger: d.Logger}

	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger) // Chi's default logger
	r.Use(middleware.Recoverer)

	r.Get("/health", h.healthCheck)
	r.Route("/api", func(r chi.Router) {
		r.Get("/auth/github/connect", h.connectGitHub)
		r.Get("/auth/github/callback", h.githubCallback)

		r.Get("/integration/status", h.integrationStatus)
		r.Post("/integration/remove", h.removeIntegration)

		// A sync request blocks for the whole pass, so only data reads get a deadline.
		r.Post("/github/sync", h.triggerSync)
		r.Get("/github/sync/status", h.syncStatus)

		r.Route("/data", func(r chi.Router) {
			r.Use(middleware.Timeout(dataRequestTimeout))
			r.Get("/collections", h.listCollections)
			r.Get("/search/{userId}/{query}", h.globalSearch)
			r.Get("/{collection}/{userId}", h.getData)
		})
	})

	origins := d.AllowedOrigins
	if len(origins) == 0 && d.FrontendURL != "" {
		origins = []string{d.FrontendURL}
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	return c.Handler(r)
}

// healthCheck is a simple health endpoint.
func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// connectGitHub starts the OAuth flow.
// GET /api/auth/github/connect
func (h *Handler) connectGitHub(w http.ResponseWriter, r *http.Request) {
	if h.OAuth == nil {
		respondWithError(w, http.StatusServiceUnavailable, "GitHub OAuth is not configured")
		return
	}
	state := xid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/api/auth/github",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.OAuth.AuthURL(state), http.StatusFound)
}

// githubCallback completes the OAuth flow and connects the account.
// GET /api/auth/github/callback?code=...&state=...
func (h *Handler) githubCallback(w http.ResponseWriter, r *http.Request) {
	if h.OAuth == nil {
		respondWithError(w, http.StatusServiceUnavailable, "GitHub OAuth is not configured")
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		respondWithError(w, http.StatusBadRequest, "Authorization code not provided")
		return
	}
	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != r.URL.Query().Get("state") {
		h.redirectError(w, r, "invalid OAuth state")
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Path: "/api/auth/github", MaxAge: -1})

	grant, err := h.OAuth.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("GitHub OAuth exchange failed", "error", err)
		h.redirectError(w, r, err.Error())
		return
	}

	userID := strconv.FormatInt(grant.Profile.ID, 10)
	_, err = h.Integrations.UpsertIntegration(r.Context(), model.Integration{
		UserID:      userID,
		Provider:    model.ProviderGitHub,
		AccessToken: grant.AccessToken,
		Profile:     grant.Profile,
		Scopes:      grant.Scopes,
		ConnectedAt: time.Now().UTC(),
	})
	if err != nil {
		h.logger.Error("Failed to store integration", "user_id", userID, "error", err)
		h.redirectError(w, r, "failed to store integration")
		return
	}

	h.logger.Info("Connected GitHub account", "user_id", userID, "login", grant.Profile.Login)
	q := url.Values{"status": {"success"}, "userId": {userID}}
	http.Redirect(w, r, h.FrontendURL+"/dashboard?"+q.Encode(), http.StatusFound)
}

func (h *Handler) redirectError(w http.ResponseWriter, r *http.Request, message string) {
	q := url.Values{"status": {"error"}, "message": {message}}
	http.Redirect(w, r, h.FrontendURL+"/integrations?"+q.Encode(), http.StatusFound)
}

// integrationStatus reports whether the user has a connected account.
// GET /api/integration/status?userId=...
func (h *Handler) integrationStatus(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		respondWithError(w, http.StatusBadRequest, "User ID required")
		return
	}

	in, err := h.Integrations.GetActiveIntegration(r.Context(), userID, model.ProviderGitHub)
	if errors.Is(err, custom_errors.ErrIntegrationNotFound) {
		respondWithJSON(w, http.StatusOK, map[string]any{"connected": false})
		return
	}
	if err != nil {
		h.logger.Error("Failed to get integration", "user_id", userID, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to get integration status")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{
		"connected":   true,
		"connectedAt": in.ConnectedAt,
		"lastSyncAt":  in.LastSyncAt,
		"userInfo":    in.Profile,
	})
}

type userRequest struct {
	UserID string `json:"userId"`
}

func decodeUserRequest(r *http.Request) (string, bool) {
	var req userRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return "", false
	}
	return req.UserID, req.UserID != ""
}

// removeIntegration deactivates the user's account. Mirrored data is kept.
// POST /api/integration/remove {"userId": "..."}
func (h *Handler) removeIntegration(w http.ResponseWriter, r *http.Request) {
	userID, ok := decodeUserRequest(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "User ID required")
		return
	}

	err := h.Integrations.DeactivateIntegration(r.Context(), userID, model.ProviderGitHub)
	if err != nil && !errors.Is(err, custom_errors.ErrIntegrationNotFound) {
		h.logger.Error("Failed to remove integration", "user_id", userID, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to remove integration")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Integration removed successfully"})
}

// triggerSync runs a sync pass and answers when it has finished. A report with errors is
// still a success; callers inspect the error list.
// POST /api/github/sync {"userId": "..."}
func (h *Handler) triggerSync(w http.ResponseWriter, r *http.Request) {
	userID, ok := decodeUserRequest(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "User ID required")
		return
	}

	report, err := h.Syncer.Sync(r.Context(), userID)
	if errors.Is(err, custom_errors.ErrIntegrationNotFound) {
		respondWithError(w, http.StatusNotFound, "Integration not found")
		return
	}
	if err != nil {
		h.logger.Error("Sync failed", "user_id", userID, "error", err)
		respondWithJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   "Failed to complete sync",
			"message": err.Error(),
		})
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Sync completed successfully",
		"data":    report,
	})
}

// syncStatus reports mirrored totals and whether a pass is running.
// GET /api/github/sync/status?userId=...
func (h *Handler) syncStatus(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		respondWithError(w, http.StatusBadRequest, "User ID required")
		return
	}

	st, err := h.Syncer.Status(r.Context(), userID)
	if errors.Is(err, custom_errors.ErrIntegrationNotFound) {
		respondWithError(w, http.StatusNotFound, "Integration not found")
		return
	}
	if err != nil {
		h.logger.Error("Failed to get sync status", "user_id", userID, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to get sync status")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"lastSyncAt": st.LastSyncAt,
		"data": map[string]int64{
			"totalOrganizations": st.TotalOrganizations,
			"totalRepositories":  st.TotalRepositories,
			"totalCommits":       st.TotalCommits,
			"totalPullRequests":  st.TotalPullRequests,
			"totalIssues":        st.TotalIssues,
			"totalUsers":         st.TotalUsers,
		},
		"status": st.State,
	})
}

type collectionInfo struct {
	Name         string            `json:"name"`
	Label        string            `json:"label"`
	SearchFields []string          `json:"searchFields"`
	Fields       map[string]string `json:"fields"`
}

// listCollections describes the queryable collections.
// GET /api/data/collections
func (h *Handler) listCollections(w http.ResponseWriter, r *http.Request) {
	var out []collectionInfo
	for _, c := range query.Collections() {
		fields := make(map[string]string, len(c.Columns))
		for name, kind := range c.Columns {
			fields[name] = kind.String()
		}
		out = append(out, collectionInfo{Name: c.Name, Label: c.Label, SearchFields: c.SearchFields, Fields: fields})
	}
	respondWithJSON(w, http.StatusOK, out)
}

// getData returns one page of a collection.
// GET /api/data/{collection}/{userId}?page=&limit=&sortField=&sortOrder=&search=&filters[field]=
func (h *Handler) getData(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p := query.ListParams{
		SortField: q.Get("sortField"),
		SortOrder: q.Get("sortOrder"),
		Search:    q.Get("search"),
		Filters:   parseFilters(q),
	}
	var ok bool
	if p.Page, ok = optionalInt(q, "page"); !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid 'page' parameter. Must be a positive integer.")
		return
	}
	if p.Limit, ok = optionalInt(q, "limit"); !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid 'limit' parameter. Must be a positive integer.")
		return
	}

	res, err := h.Collections.List(r.Context(), chi.URLParam(r, "userId"), chi.URLParam(r, "collection"), p)
	if err != nil {
		h.respondQueryError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, res)
}

// globalSearch looks for a term across every collection.
// GET /api/data/search/{userId}/{query}?limit=N
func (h *Handler) globalSearch(w http.ResponseWriter, r *http.Request) {
	limit, ok := optionalInt(r.URL.Query(), "limit")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid 'limit' parameter. Must be a positive integer.")
		return
	}
	if limit == 0 {
		limit = defaultSearchLimit
	}
	term := chi.URLParam(r, "query")

	results, err := h.Collections.Search(r.Context(), chi.URLParam(r, "userId"), term, limit)
	if err != nil {
		h.respondQueryError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{
		"query":   term,
		"results": results,
		"total":   len(results),
	})
}

func (h *Handler) respondQueryError(w http.ResponseWriter, err error) {
	var qErr *custom_errors.InvalidQueryError
	switch {
	case errors.Is(err, custom_errors.ErrIntegrationNotFound):
		respondWithError(w, http.StatusNotFound, "Integration not found")
	case errors.Is(err, custom_errors.ErrUnknownCollection):
		respondWithError(w, http.StatusBadRequest, "Invalid collection")
	case errors.As(err, &qErr):
		respondWithError(w, http.StatusBadRequest, qErr.Error())
	default:
		h.logger.Error("Failed to query data", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to get data")
	}
}

// parseFilters collects filters[field]=value parameters.
func parseFilters(q url.Values) map[string]string {
	filters := map[string]string{}
	for k := range q {
		if !strings.HasPrefix(k, "filters[") || !strings.HasSuffix(k, "]") {
			continue
		}
		field := strings.TrimSuffix(strings.TrimPrefix(k, "filters["), "]")
		if v := q.Get(k); field != "" && v != "" {
			filters[field] = v
		}
	}
	return filters
}

// optionalInt parses a positive integer parameter. Absent yields 0.
func optionalInt(q url.Values, key string) (int, bool) {
	raw := q.Get(key)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
