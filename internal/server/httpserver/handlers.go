package httpserver

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/clusterdeck/internal/server/actions"
	"github.com/dmitrijs2005/clusterdeck/internal/server/httpx"
	"github.com/dmitrijs2005/clusterdeck/internal/server/models"
	"github.com/dmitrijs2005/clusterdeck/internal/server/session"
)

const maxFormMemory = 1 << 20

// action adapts a form action to a handler.
func (s *Server) action(a actions.Action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			err = r.ParseMultipartForm(maxFormMemory)
		} else {
			err = r.ParseForm()
		}
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "Invalid form data")
			return
		}

		res, err := a(r.Context(), r.PostForm)
		s.render(w, r, res, err)
	}
}

// render writes an action outcome:
//   - Err as 422 {"error"}
//   - Ok with Redirect as 303
//   - any other Ok as 200 {"success"}
//
// Session changes on Ok are applied as cookies first.
func (s *Server) render(w http.ResponseWriter, r *http.Request, res actions.Result, err error) {
	if err != nil {
		if errors.Is(err, actions.ErrNotAuthenticated) {
			httpx.WriteError(w, http.StatusUnauthorized, "User is not authenticated")
			return
		}
		s.logger.Error(r.Context(), "action failed", "path", r.URL.Path, "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}

	switch v := res.(type) {
	case actions.Err:
		httpx.WriteError(w, http.StatusUnprocessableEntity, v.Message)
	case actions.Ok:
		if v.Session != nil {
			s.deps.Sessions.SetCookie(w, v.Session.Token, v.Session.Expires)
		}
		if v.EndSession {
			s.deps.Sessions.ClearCookie(w)
		}
		if v.Redirect != "" {
			http.Redirect(w, r, v.Redirect, http.StatusSeeOther)
			return
		}
		body := map[string]any{"success": v.Message}
		if v.Invitation != nil {
			body["invitationId"] = v.Invitation.ID
		}
		httpx.WriteJSON(w, http.StatusOK, body)
	default:
		s.logger.Error(r.Context(), "action returned no result", "path", r.URL.Path)
		httpx.WriteError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	}
}

func (s *Server) signOut(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Accounts.SignOut(r.Context(), session.UserFrom(r.Context()))
	s.render(w, r, res, err)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// currentUser answers with the signed-in user or null.
func (s *Server) currentUser(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, session.UserFrom(r.Context()))
}

func (s *Server) dashboard(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"user": session.UserFrom(r.Context())})
}

func (s *Server) activity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := session.UserFrom(ctx)
	if user == nil {
		httpx.WriteError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	entries, err := s.deps.Activity.ActivityForUser(ctx, user.ID)
	if err != nil {
		s.logger.Error(ctx, "activity lookup failed", "user_id", user.ID, "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}
	if entries == nil {
		entries = []models.ActivityEntry{}
	}
	httpx.WriteJSON(w, http.StatusOK, entries)
}

func (s *Server) cluster(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, session.FromContext(r.Context()).Cluster)
}

func (s *Server) export(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sc := session.FromContext(ctx)

	exp, err := s.deps.Exporter.Export(ctx, sc.Cluster.ID)
	if err != nil {
		s.logger.Error(ctx, "activity export failed", "cluster_id", sc.Cluster.ID, "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "Failed to export activity")
		return
	}
	s.logger.Info(ctx, "activity exported", "cluster_id", sc.Cluster.ID, "key", exp.Key, "entries", exp.Entries)
	httpx.WriteJSON(w, http.StatusOK, exp)
}
