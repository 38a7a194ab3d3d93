package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/quillard/formulaire/docx"
	"github.com/quillard/formulaire/guichet"
	"github.com/quillard/formulaire/shield"
)

const docxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

func newRouter(svc *guichet.Service, rl *shield.RateLimiter, maxUploadBytes int64) chi.Router {
	r := chi.NewRouter()
	for _, mw := range shield.DefaultStack(maxUploadBytes) {
		r.Use(mw)
	}
	if rl != nil {
		r.Use(rl.Middleware)
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "ok"})
	})

	r.Post("/api/documents", func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				writeError(w, http.StatusRequestEntityTooLarge, err)
				return
			}
			writeError(w, 400, fmt.Errorf("multipart field %q required: %w", "file", err))
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			writeError(w, 400, err)
			return
		}

		res, err := svc.Upload(r.Context(), header.Filename, header.Header.Get("Content-Type"), data)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, 201, res)
	})

	r.Post("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			SessionID string `json:"session_id"`
			Message   string `json:"message"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, 400, err)
			return
		}
		res, err := svc.Chat(r.Context(), req.SessionID, req.Message)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, 200, res)
	})

	r.Post("/api/documents/{sessionID}/generate", func(w http.ResponseWriter, r *http.Request) {
		sessionID := chi.URLParam(r, "sessionID")
		res, err := svc.Generate(r.Context(), sessionID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", docxContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.Filename))
		w.Header().Set("Content-Length", strconv.Itoa(len(res.Data)))
		w.WriteHeader(200)
		w.Write(res.Data)
	})

	r.Get("/api/history", func(w http.ResponseWriter, r *http.Request) {
		limit := queryInt(r, "limit", 50)
		recs, err := svc.History(r.Context(), limit)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, 200, recs)
	})

	return r
}

// writeServiceError maps the guichet error taxonomy onto HTTP status codes:
// input-validation errors are 4xx, session errors 404/409, everything else
// (render and archive failures) 500 with the underlying message.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	logger := shield.GetLogger(r.Context())
	switch {
	case errors.Is(err, guichet.ErrInvalidUpload),
		errors.Is(err, docx.ErrMalformedPackage),
		errors.Is(err, docx.ErrNoPlaceholders):
		writeError(w, 400, err)
	case errors.Is(err, guichet.ErrUnknownSession):
		writeError(w, 404, err)
	case errors.Is(err, guichet.ErrNotReady):
		writeError(w, 409, err)
	default:
		logger.Error("request failed", "error", err)
		writeError(w, 500, err)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
