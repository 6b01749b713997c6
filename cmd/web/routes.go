package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/AdamBeresnev/bracket-engine/internal/bracket"
	"github.com/AdamBeresnev/bracket-engine/internal/graph"
	"github.com/AdamBeresnev/bracket-engine/internal/httputil"
	"github.com/AdamBeresnev/bracket-engine/internal/layout"
	"github.com/AdamBeresnev/bracket-engine/internal/ledger"
	"github.com/AdamBeresnev/bracket-engine/internal/middleware"
	"github.com/AdamBeresnev/bracket-engine/internal/notify"
	"github.com/AdamBeresnev/bracket-engine/internal/submission"
	"github.com/AdamBeresnev/bracket-engine/internal/view"
	"github.com/AdamBeresnev/bracket-engine/views"
	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
)

const maxEntryNameLen = 50

type application struct {
	store    *ledger.Store
	registry *view.Registry
	hub      *notify.Hub
	sessions *scs.SessionManager
	origins  []string
}

func newRouter(app *application) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(app.sessions.LoadAndSave)
	r.Use(middleware.LoadViewer(app.sessions))

	// Serve static files
	fileServer := http.FileServer(http.Dir("./static"))
	r.Handle("/static/*", http.StripPrefix("/static/", fileServer))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		brackets, err := app.store.ListBrackets(r.Context())
		if err != nil {
			httputil.InternalServerError(w, "Failed to list brackets", err)
			return
		}
		views.Render(w, r, views.Index(brackets))
	})

	r.Post("/brackets/entries", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			httputil.BadRequest(w, "Invalid form data", err)
			return
		}
		newIndex := 0
		for _, index := range entryIndices(r) {
			newIndex = max(newIndex, index+1)
		}
		fmt.Fprint(w, views.Entry(newIndex))
	})

	r.Post("/brackets", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			httputil.BadRequest(w, "Invalid form data", err)
			return
		}
		name := strings.TrimSpace(r.Form.Get("name"))
		if name == "" {
			httputil.BadRequest(w, "Bracket name is required", nil)
			return
		}
		format, err := bracket.ParseFormat(r.Form.Get("format"), r.Form.Get("third_place") == "true")
		if err != nil {
			httputil.BadRequest(w, err.Error(), err)
			return
		}

		var entries []string
		for _, index := range entryIndices(r) {
			entryName := strings.TrimSpace(r.Form.Get("entry_name_" + strconv.Itoa(index)))
			if len(entryName) > maxEntryNameLen {
				httputil.BadRequest(w, fmt.Sprintf("Entry name '%s' exceeds %d characters", entryName, maxEntryNameLen), nil)
				return
			}
			if entryName != "" {
				entries = append(entries, entryName)
			}
		}

		b, err := app.store.CreateBracket(r.Context(), name, format, entries)
		if err != nil {
			if errors.Is(err, ledger.ErrTooFewEntries) || errors.Is(err, ledger.ErrUnsupportedSize) || errors.Is(err, ledger.ErrDuplicateEntrants) {
				httputil.BadRequest(w, err.Error(), err)
				return
			}
			httputil.InternalServerError(w, "Failed to create bracket", err)
			return
		}
		w.Header().Set("HX-Redirect", "/brackets/"+b.ID.String())
		w.WriteHeader(http.StatusCreated)
	})

	r.Route("/brackets/{id}", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			b, v, ok := app.bracketView(w, r)
			if !ok {
				return
			}
			share := view.ParseShareQuery(r.URL.RawQuery)
			views.Render(w, r, views.BracketPage(views.BracketPageData{
				Bracket:  b,
				Data:     views.PrepareBracketData(v.Snapshot(), share),
				ShareURL: shareURL(b.ID.String(), share),
				FullView: share.FullBracket,
			}))
		})

		r.With(app.layoutCORS()).Get("/layout", func(w http.ResponseWriter, r *http.Request) {
			_, v, ok := app.bracketView(w, r)
			if !ok {
				return
			}
			snap := v.Snapshot()
			resp := layoutResponse{
				Layout:   snap.Layout,
				Pending:  snap.Pending,
				Done:     snap.Done,
				Dangling: snap.Dangling,
			}
			if snap.Err != nil {
				resp.Error = snap.Err.Error()
			}
			httputil.WriteJSON(w, http.StatusOK, resp)
		})

		r.Post("/pending", func(w http.ResponseWriter, r *http.Request) {
			_, v, ok := app.bracketView(w, r)
			if !ok {
				return
			}
			if err := r.ParseForm(); err != nil {
				httputil.BadRequest(w, "Invalid form data", err)
				return
			}
			matchNumber, err := strconv.Atoi(r.Form.Get("match"))
			if err != nil {
				httputil.BadRequest(w, "Invalid match number", err)
				return
			}
			result, err := bracket.ParseResult(r.Form.Get("result"))
			if err != nil {
				httputil.BadRequest(w, "Invalid result", err)
				return
			}
			if err := v.Propose(matchNumber, result); err != nil {
				httputil.BadRequest(w, err.Error(), err)
				return
			}
			refresh(w, r)
		})

		r.Delete("/pending/{match}", func(w http.ResponseWriter, r *http.Request) {
			_, v, ok := app.bracketView(w, r)
			if !ok {
				return
			}
			matchNumber, err := strconv.Atoi(chi.URLParam(r, "match"))
			if err != nil {
				httputil.BadRequest(w, "Invalid match number", err)
				return
			}
			v.Withdraw(matchNumber)
			refresh(w, r)
		})

		r.Post("/submit", func(w http.ResponseWriter, r *http.Request) {
			b, v, ok := app.bracketView(w, r)
			if !ok {
				return
			}
			report, err := v.Submit(r.Context())
			switch {
			case errors.Is(err, submission.ErrEmptySubmission), errors.Is(err, submission.ErrInvalidEntry):
				httputil.BadRequest(w, err.Error(), err)
				return
			case errors.Is(err, submission.ErrSubmissionInFlight):
				httputil.Conflict(w, "A submission is already running", err)
				return
			case errors.Is(err, view.ErrClosed):
				httputil.Conflict(w, "View expired, reload the page", err)
				return
			case err != nil:
				httputil.BadGateway(w, "Failed to submit results", err)
				return
			}

			app.invalidateOthers(b.ID.String(), v)

			if r.Header.Get("HX-Request") != "" {
				refresh(w, r)
				return
			}
			resp := submitResponse{Submitted: report.Submitted, Signals: report.Signals}
			if report.RefreshErr != nil {
				resp.RefreshError = report.RefreshErr.Error()
			}
			httputil.WriteJSON(w, http.StatusOK, resp)
		})

		r.Get("/share", func(w http.ResponseWriter, r *http.Request) {
			id := chi.URLParam(r, "id")
			share := view.ParseShareQuery(r.URL.RawQuery)
			httputil.WriteJSON(w, http.StatusOK, map[string]string{"url": shareURL(id, share)})
		})

		r.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
			b, _, ok := app.bracketView(w, r)
			if !ok {
				return
			}
			app.hub.ServeWS(w, r, b.ID.String())
		})
	})

	return r
}

type layoutResponse struct {
	Layout   *layout.Result        `json:"layout"`
	Pending  []bracket.ResultEntry `json:"pending"`
	Done     bool                  `json:"done"`
	Dangling []graph.Edge          `json:"dangling,omitempty"`
	Error    string                `json:"error,omitempty"`
}

type submitResponse struct {
	Submitted    []bracket.ResultEntry `json:"submitted"`
	Signals      []bracket.Signal      `json:"signals,omitempty"`
	RefreshError string                `json:"refreshError,omitempty"`
}

// bracketView resolves the bracket in the URL and the caller's own view of it,
// starting the initial fetch the first time the viewer opens it.
// layoutCORS lets external renderers read the layout model. It is a no-op
// when no origins are configured.
func (app *application) layoutCORS() func(http.Handler) http.Handler {
	if len(app.origins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: app.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept"},
		MaxAge:         300,
	})
}

func (app *application) bracketView(w http.ResponseWriter, r *http.Request) (*bracket.Bracket, *view.View, bool) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		httputil.BadRequest(w, "Invalid bracket ID", err)
		return nil, nil, false
	}

	b, err := app.store.GetBracket(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			httputil.NotFound(w, "Bracket not found", err)
			return nil, nil, false
		}
		httputil.InternalServerError(w, "Failed to get bracket", err)
		return nil, nil, false
	}

	viewerID, _ := middleware.GetViewerIDFromContext(r.Context())
	v, created := app.registry.Get(viewerID.String(), id)
	if created {
		go func() {
			if err := v.Load(context.Background()); err != nil {
				slog.Warn("initial bracket load failed", "bracket_id", id, "error", err)
			}
		}()
	}
	return b, v, true
}

// invalidateOthers tells every other viewer of the bracket that the
// confirmed state changed underneath them.
func (app *application) invalidateOthers(bracketID string, submitter *view.View) {
	app.registry.Each(bracketID, func(v *view.View) {
		if v == submitter {
			return
		}
		go func() {
			if err := v.ExternalModified(context.Background()); err != nil {
				slog.Warn("refresh after external change failed", "bracket_id", bracketID, "error", err)
			}
		}()
	})
}

func entryIndices(r *http.Request) []int {
	var indices []int
	for key := range r.Form {
		if indexStr, ok := strings.CutPrefix(key, "entry_name_"); ok {
			if index, err := strconv.Atoi(indexStr); err == nil {
				indices = append(indices, index)
			}
		}
	}
	sort.Ints(indices)
	return indices
}

func shareURL(bracketID string, share view.ShareState) string {
	u := "/brackets/" + bracketID
	if q := view.ShareQuery(share); q != "" {
		u += "?" + q
	}
	return u
}

func refresh(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("HX-Request") != "" {
		w.Header().Set("HX-Refresh", "true")
		w.WriteHeader(http.StatusOK)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
