package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/alanyoungcy/ppmclient/internal/domain"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 64 << 10

// writeJSON marshals v as JSON and writes it with the given status. If
// marshaling fails it falls back to a plain 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// errorBody is the JSON shape of every error response. Tag is the contract
// error name when the chain rejected the request.
type errorBody struct {
	Error       string `json:"error"`
	Tag         string `json:"tag,omitempty"`
	NeedsSecret bool   `json:"needs_secret,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeDomainError maps err to a status code and a human message.
func writeDomainError(w http.ResponseWriter, err error, fallback string) {
	body := errorBody{Error: domain.HumanMessage(err, fallback)}
	if tag, ok := domain.ErrorTag(err); ok {
		body.Tag = string(tag)
	}
	body.NeedsSecret = errors.Is(err, domain.ErrSecretRequired)
	writeJSON(w, statusFor(err), body)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrInvalidVote),
		errors.Is(err, domain.ErrInvalidSecret):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrTxPending),
		errors.Is(err, domain.ErrSecretRequired):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNoWallet):
		return http.StatusPreconditionFailed
	case errors.Is(err, domain.ErrContractRejected),
		errors.Is(err, domain.ErrTxReverted):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	}
	if _, ok := domain.ErrorTag(err); ok {
		return http.StatusUnprocessableEntity
	}
	return http.StatusBadGateway
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return &domain.InputError{Field: "body", Message: fmt.Sprintf("Invalid request body: %v", err)}
	}
	return nil
}

// marketID parses the {id} path value.
func marketID(r *http.Request) (uint64, error) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		return 0, &domain.InputError{Field: "id", Message: "Invalid market id"}
	}
	return id, nil
}

// parseListOpts reads limit and offset. Defaults: limit=50 (max 500),
// offset=0.
func parseListOpts(r *http.Request) domain.ListOpts {
	q := r.URL.Query()

	limit := 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}

	offset := 0
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return domain.ListOpts{Limit: limit, Offset: offset}
}
