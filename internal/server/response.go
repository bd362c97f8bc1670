package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/me/gosched/internal/store"
	"github.com/me/gosched/pkg/model"
)

// requestID generates a unique request identifier.
func requestID() string {
	return "req_" + uuid.New().String()[:8]
}

// respondOK writes a success response with the standard envelope.
func respondOK(w http.ResponseWriter, reqID string, data any) {
	respondJSON(w, http.StatusOK, reqID, data, nil, nil)
}

// respondCreated writes a 201 response with the standard envelope.
func respondCreated(w http.ResponseWriter, reqID string, data any) {
	respondJSON(w, http.StatusCreated, reqID, data, nil, nil)
}

// respondList writes a success response with pagination.
func respondList(w http.ResponseWriter, reqID string, data any, pg *model.Pagination) {
	respondJSON(w, http.StatusOK, reqID, data, pg, nil)
}

// respondError writes an error response with the standard envelope.
func respondError(w http.ResponseWriter, reqID string, status int, apiErr *model.APIError) {
	respondJSON(w, status, reqID, nil, nil, apiErr)
}

// respondInternal writes a 500 carrying err's message.
func respondInternal(w http.ResponseWriter, reqID string, err error) {
	respondError(w, reqID, http.StatusInternalServerError,
		&model.APIError{Code: model.ErrInternal, Message: err.Error()})
}

// respondStoreError maps store sentinels onto API errors.
func respondStoreError(w http.ResponseWriter, reqID string, id int64, err error) {
	var te *model.InvalidTransitionError
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("job", id))
	case errors.Is(err, store.ErrJobRunning):
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("cannot update a running job"))
	case errors.Is(err, store.ErrJobTerminal):
		respondError(w, reqID, http.StatusConflict, model.NewConflictError("job has already finished"))
	case errors.As(err, &te):
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError(te.Error()))
	default:
		respondInternal(w, reqID, err)
	}
}

func respondJSON(w http.ResponseWriter, status int, reqID string, data any, pg *model.Pagination, apiErr *model.APIError) {
	resp := model.Response{
		RequestID:  reqID,
		Timestamp:  time.Now().UTC(),
		Data:       data,
		Pagination: pg,
		Error:      apiErr,
	}
	if apiErr != nil {
		resp.Status = "error"
	} else {
		resp.Status = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// jobIDParam parses the {id} URL parameter, writing a 400 when it is not an integer.
func jobIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		respondError(w, RequestIDFromContext(r.Context()), http.StatusBadRequest,
			model.NewValidationError("invalid job id", model.FieldError{Field: "id", Message: "must be a positive integer, got " + strconv.Quote(raw)}))
		return 0, false
	}
	return id, true
}

// listOptions reads limit, offset and status from the query string.
func listOptions(r *http.Request) (model.ListOptions, []model.FieldError) {
	opts := model.DefaultListOptions()
	q := r.URL.Query()
	var errs []model.FieldError

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, model.FieldError{Field: "limit", Message: "must be an integer"})
		}
		opts.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, model.FieldError{Field: "offset", Message: "must be an integer"})
		}
		opts.Offset = n
	}
	if v := q.Get("status"); v != "" {
		st, err := model.ParseStatus(v)
		if err != nil {
			errs = append(errs, model.FieldError{Field: "status", Message: err.Error()})
		}
		opts.Status = st
	}
	opts.Clamp()
	return opts, errs
}
