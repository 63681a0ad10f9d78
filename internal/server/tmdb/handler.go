package tmdb

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/dmitrijs2005/clusterdeck/internal/logging"
	"github.com/dmitrijs2005/clusterdeck/internal/server/httpx"
	"github.com/go-chi/chi/v5"
)

const (
	cacheOK    = "public, max-age=3600, stale-while-revalidate=86400"
	cacheError = "public, max-age=60"
)

// Fetcher is what the handlers need from the upstream client.
type Fetcher interface {
	Get(ctx context.Context, path string, query url.Values) ([]byte, error)
}

// Handler serves the metadata proxy routes.
type Handler struct {
	upstream Fetcher
	language string
	logger   logging.Logger
}

func NewHandler(upstream Fetcher, language string, logger logging.Logger) *Handler {
	if language == "" {
		language = "en-US"
	}
	return &Handler{upstream: upstream, language: language, logger: logger.With("module", "tmdb")}
}

// Routes registers the proxy endpoints on r. Static segments take
// precedence over {mediaType}/{mediaId}.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/movie/now-playing", h.list("/movie/now_playing", "Failed to fetch now playing movies"))
	r.Get("/tv/airing-today", h.list("/tv/airing_today", "Failed to fetch airing today tv"))
	r.Get("/tv/on-the-air", h.list("/tv/on_the_air", "Failed to fetch on the air tv"))
	r.Get("/tv/{tvId}/season/{seasonNumber}", h.season)
	r.Get("/tv/{tvId}/season/{seasonNumber}/episode/{episodeNumber}", h.episode)
	r.Get("/search/{searchType}", h.search)
	r.Get("/find/{externalId}", h.find)
	r.Get("/{mediaType}/trending", h.trending)
	r.Get("/{mediaType}/top-rated", h.mediaList("top_rated", "Failed to fetch top rated %s"))
	r.Get("/{mediaType}/upcoming", h.mediaList("upcoming", "Failed to fetch upcoming %s"))
	r.Get("/{mediaType}/{mediaId}", h.details)
	r.Get("/{mediaType}/{mediaId}/credits", h.credits)
	r.Get("/{mediaType}/{mediaId}/external_ids", h.externalIDs)
}

// params builds an upstream query from key/value pairs, dropping empty
// values.
func params(kv ...string) url.Values {
	q := url.Values{}
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] != "" {
			q.Set(kv[i], kv[i+1])
		}
	}
	return q
}

func valueOr(r *http.Request, key, def string) string {
	if v := r.URL.Query().Get(key); v != "" {
		return v
	}
	return def
}

func (h *Handler) lang(r *http.Request) string { return valueOr(r, "language", h.language) }

func page(r *http.Request) string { return valueOr(r, "page", "1") }

// forward fetches path and writes the upstream body verbatim, or errMsg
// as a 500.
func (h *Handler) forward(w http.ResponseWriter, r *http.Request, path string, query url.Values, errMsg string) {
	body, err := h.upstream.Get(r.Context(), path, query)
	if err != nil {
		h.logger.Warn(r.Context(), "metadata request failed", "path", path, "error", err)
		w.Header().Set("Cache-Control", cacheError)
		httpx.WriteError(w, http.StatusInternalServerError, errMsg)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", cacheOK)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (h *Handler) details(w http.ResponseWriter, r *http.Request) {
	mediaType, mediaID := chi.URLParam(r, "mediaType"), chi.URLParam(r, "mediaId")
	h.forward(w, r, "/"+url.PathEscape(mediaType)+"/"+url.PathEscape(mediaID),
		params("language", h.lang(r), "append_to_response", r.URL.Query().Get("append_to_response")),
		fmt.Sprintf("Failed to fetch %s details", mediaType))
}

func (h *Handler) credits(w http.ResponseWriter, r *http.Request) {
	mediaType, mediaID := chi.URLParam(r, "mediaType"), chi.URLParam(r, "mediaId")
	h.forward(w, r, "/"+url.PathEscape(mediaType)+"/"+url.PathEscape(mediaID)+"/credits", nil,
		"Failed to fetch credits")
}

func (h *Handler) externalIDs(w http.ResponseWriter, r *http.Request) {
	mediaType, mediaID := chi.URLParam(r, "mediaType"), chi.URLParam(r, "mediaId")
	h.forward(w, r, "/"+url.PathEscape(mediaType)+"/"+url.PathEscape(mediaID)+"/external_ids", nil,
		"Failed to fetch external ids")
}

func (h *Handler) trending(w http.ResponseWriter, r *http.Request) {
	mediaType := chi.URLParam(r, "mediaType")
	window := valueOr(r, "timeWindow", "week")
	h.forward(w, r, "/trending/"+url.PathEscape(mediaType)+"/"+url.PathEscape(window),
		params("language", h.lang(r), "page", page(r)),
		fmt.Sprintf("Failed to fetch trending %s", mediaType))
}

// mediaList serves /{mediaType}/<endpoint> listings.
func (h *Handler) mediaList(endpoint, errFormat string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mediaType := chi.URLParam(r, "mediaType")
		h.forward(w, r, "/"+url.PathEscape(mediaType)+"/"+endpoint,
			params("language", h.lang(r), "page", page(r)),
			fmt.Sprintf(errFormat, mediaType))
	}
}

// list serves a fixed upstream listing.
func (h *Handler) list(path, errMsg string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.forward(w, r, path, params("language", h.lang(r), "page", page(r)), errMsg)
	}
}

func (h *Handler) season(w http.ResponseWriter, r *http.Request) {
	path := fmt.Sprintf("/tv/%s/season/%s",
		url.PathEscape(chi.URLParam(r, "tvId")), url.PathEscape(chi.URLParam(r, "seasonNumber")))
	h.forward(w, r, path,
		params("language", h.lang(r), "append_to_response", r.URL.Query().Get("append_to_response")),
		"Failed to fetch TV season details")
}

func (h *Handler) episode(w http.ResponseWriter, r *http.Request) {
	path := fmt.Sprintf("/tv/%s/season/%s/episode/%s",
		url.PathEscape(chi.URLParam(r, "tvId")),
		url.PathEscape(chi.URLParam(r, "seasonNumber")),
		url.PathEscape(chi.URLParam(r, "episodeNumber")))
	h.forward(w, r, path,
		params("language", h.lang(r), "append_to_response", r.URL.Query().Get("append_to_response")),
		"Failed to fetch TV episode details")
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	searchType := chi.URLParam(r, "searchType")
	query := r.URL.Query().Get("query")
	if query == "" {
		httpx.WriteError(w, http.StatusBadRequest, "Query parameter is required")
		return
	}

	includeAdult := "false"
	if r.URL.Query().Get("include_adult") == "true" {
		includeAdult = "true"
	}

	h.forward(w, r, "/search/"+url.PathEscape(searchType),
		params("query", query, "include_adult", includeAdult, "language", h.lang(r), "page", page(r)),
		fmt.Sprintf("Failed to fetch search results for %s", searchType))
}

func (h *Handler) find(w http.ResponseWriter, r *http.Request) {
	source := r.URL.Query().Get("external_source")
	if source == "" {
		httpx.WriteError(w, http.StatusBadRequest, "external_source parameter is required")
		return
	}

	h.forward(w, r, "/find/"+url.PathEscape(chi.URLParam(r, "externalId")),
		params("external_source", source),
		"Failed to fetch external ID")
}
