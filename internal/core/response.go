package core

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"graphbridge/internal/types"
)

// maxRequestBodySize caps inbound bodies at 1 MB. CDC events are small;
// anything bigger is abuse, not data.
const maxRequestBodySize = 1 << 20

// APIErrorResponse is the standard envelope for all error responses.
type APIErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the structured error information returned to clients.
type ErrorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// JSON writes a JSON response with the given status code and data. If
// marshaling fails it falls back to a 500 error response.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		fallback := APIErrorResponse{
			Error: ErrorDetail{
				Code:      string(types.ErrCodeInternalUnexpected),
				Message:   "failed to marshal response",
				RequestID: types.GetRequestID(r.Context()),
			},
		}
		// Best-effort write; nothing more can be done if this also fails.
		_ = json.NewEncoder(w).Encode(fallback)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// Error writes an error response. A *types.AppError anywhere in the chain
// determines the status and client-visible message; any other error becomes
// a 500 carrying the fault description so the caller's retry policy has
// something to log.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	requestID := types.GetRequestID(r.Context())

	var appErr *types.AppError
	if errors.As(err, &appErr) {
		JSON(w, r, appErr.HTTPStatus(), APIErrorResponse{
			Error: ErrorDetail{
				Code:      string(appErr.Code),
				Message:   appErr.Message,
				RequestID: requestID,
			},
		})
		return
	}

	JSON(w, r, http.StatusInternalServerError, APIErrorResponse{
		Error: ErrorDetail{
			Code:      string(types.ErrCodeInternalUnexpected),
			Message:   err.Error(),
			RequestID: requestID,
		},
	})
}

// DecodeJSON reads the request body into dst, enforcing the body size cap
// and rejecting empty or malformed bodies with a 400-mapped AppError.
// Unknown fields are permitted: raw change events carry whatever keys the
// trigger mechanism emits, and the typed records pick out the ones the
// bridge understands.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return mapDecodeError(err)
	}

	return nil
}

// mapDecodeError translates a json.Decoder error into a structured AppError.
func mapDecodeError(err error) *types.AppError {
	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytesErr):
		return types.NewAppError(
			types.ErrCodeValidationInvalidJSON,
			"request body exceeds the maximum allowed size",
			err,
		)
	case errors.Is(err, io.EOF):
		return types.NewAppError(
			types.ErrCodeValidationInvalidJSON,
			"request body is empty",
			err,
		)
	default:
		return types.NewAppError(
			types.ErrCodeValidationInvalidJSON,
			"request body is not valid JSON",
			err,
		)
	}
}
