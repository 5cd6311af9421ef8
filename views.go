package main

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
)

//---
// Error payloads
//---

type ErrResponse struct {
	Err            error `json:"-"`
	HTTPStatusCode int   `json:"-"`

	StatusText string `json:"status"`
	ErrorText  string `json:"error,omitempty"`
}

func (e *ErrResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatusCode)
	return nil
}

func ErrInvalidRequest(err error) render.Renderer {
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: http.StatusBadRequest,
		StatusText:     "Invalid request",
		ErrorText:      err.Error(),
	}
}

func ErrRender(err error) render.Renderer {
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: http.StatusInternalServerError,
		StatusText:     "Error rendering response",
		ErrorText:      err.Error(),
	}
}

func ErrUnauthorized(err error) render.Renderer {
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: http.StatusUnauthorized,
		StatusText:     "Unauthorized",
		ErrorText:      err.Error(),
	}
}

func ErrPermissionDenied(err error) render.Renderer {
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: http.StatusForbidden,
		StatusText:     "Permission denied",
		ErrorText:      err.Error(),
	}
}

var ErrNotFound = &ErrResponse{HTTPStatusCode: http.StatusNotFound, StatusText: "Resource not found"}

//---
// Dashboard views
//---

type OverridePayload struct {
	Value *float64 `json:"value"`
}

func (p *OverridePayload) Bind(r *http.Request) error {
	if p.Value == nil {
		return errors.New("value is required")
	}
	return nil
}

// ListEntries returns the full dashboard snapshot.
func ListEntries(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, ENV.Table.Entries())
}

// SetOverride stores an operator value for a key, e.g. "Arm kP".
func SetOverride(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	data := &OverridePayload{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}

	if err := ENV.Table.SetOverride(key, *data.Value); err != nil {
		render.Render(w, r, ErrRender(err))
		return
	}

	render.NoContent(w, r)
}

// ClearOverride drops an operator value, returning the key to telemetry.
func ClearOverride(w http.ResponseWriter, r *http.Request) {
	if err := ENV.Table.ClearOverride(chi.URLParam(r, "key")); err != nil {
		render.Render(w, r, ErrRender(err))
		return
	}

	render.NoContent(w, r)
}
