package core

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"
)

func RequestBody[TRequest any](r *http.Request) (TRequest, error) {
	var request TRequest
	err := json.NewDecoder(r.Body).Decode(&request)
	return request, err
}

type ResponseOption func(http.ResponseWriter, *http.Request)

func WithHeader(header, value string) ResponseOption {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add(header, value)
	}
}

func WriteOK(w http.ResponseWriter, r *http.Request, body interface{}) {
	WriteResponse(w, r, http.StatusOK, body)
}

func WriteCreated(w http.ResponseWriter, r *http.Request, location string, body interface{}) {
	WriteResponse(w, r, http.StatusCreated, body, WithHeader("Location", location))
}

func WriteNoContent(w http.ResponseWriter, r *http.Request) {
	WriteResponse(w, r, http.StatusNoContent, nil)
}

func WriteBadRequest(w http.ResponseWriter, r *http.Request, body interface{}) {
	WriteResponse(w, r, http.StatusBadRequest, body)
}

func WriteUnauthorized(w http.ResponseWriter, r *http.Request, body interface{}) {
	WriteResponse(w, r, http.StatusUnauthorized, body)
}

func WriteForbidden(w http.ResponseWriter, r *http.Request, body interface{}) {
	WriteResponse(w, r, http.StatusForbidden, body)
}

func WriteNotFound(w http.ResponseWriter, r *http.Request, body interface{}) {
	WriteResponse(w, r, http.StatusNotFound, body)
}

func WriteInternalServerError(w http.ResponseWriter, r *http.Request, body interface{}) {
	WriteResponse(w, r, http.StatusInternalServerError, body)
}

// WriteCommandError writes err with the status of the first CommandError in
// its chain, or 500.
func WriteCommandError(w http.ResponseWriter, r *http.Request, err error, opts ...ResponseOption) {
	var commandErr CommandError
	if !errors.As(err, &commandErr) {
		commandErr = NewCommandError(http.StatusInternalServerError, err)
	}

	WriteResponse(w, r, commandErr.StatusCode, commandErr, opts...)
}

func WriteResponse(
	w http.ResponseWriter,
	r *http.Request,
	statusCode int,
	body interface{},
	opts ...ResponseOption,
) {
	for _, opt := range opts {
		opt(w, r)
	}

	if body != nil {
		w.Header().Set("Content-Type", "application/json")
	}

	w.WriteHeader(statusCode)
	writeBodyIfPresent(r.Context(), w, body)
}

func writeBodyIfPresent(ctx context.Context, w http.ResponseWriter, body interface{}) {
	if body == nil {
		return
	}

	// Plain errors marshal into an empty object.
	if err, ok := body.(error); ok {
		if _, isMarshaler := body.(json.Marshaler); !isMarshaler {
			body = map[string]string{"error": err.Error()}
		}
	}

	responseBytes, err := json.Marshal(body)
	if err != nil {
		LogError(ctx, "failed to serialize response", zap.Error(err))
		return
	}

	if _, err := w.Write(responseBytes); err != nil {
		LogError(ctx, "failed to write response", zap.Error(err))
	}
}
