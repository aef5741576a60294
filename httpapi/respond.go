package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	postAuth "github.com/MrEthical07/postAuth"
)

const maxBodyBytes = 1 << 20

var errInvalidPayload = errors.New("invalid request payload")

type errorResponse struct {
	Error string `json:"error"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// statusFor maps an engine error to its HTTP status.
func statusFor(err error) int {
	switch postAuth.KindOf(err) {
	case postAuth.KindValidation:
		return http.StatusBadRequest
	case postAuth.KindConflict:
		return http.StatusConflict
	case postAuth.KindAuthentication:
		return http.StatusUnauthorized
	case postAuth.KindAuthorization, postAuth.KindState:
		return http.StatusForbidden
	case postAuth.KindNotFound:
		return http.StatusNotFound
	case postAuth.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage returns the client-facing text for err.
func publicMessage(err error) string {
	switch postAuth.KindOf(err) {
	case postAuth.KindInternal, postAuth.KindUnknown:
		return postAuth.ErrInternal.Error()
	default:
		return err.Error()
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError && !errors.Is(err, postAuth.ErrInternal) {
		s.logger.Error("unhandled error", s.requestFields(r, err)...)
	}
	// A rejected session cookie is stale; drop it.
	if errors.Is(err, postAuth.ErrUnauthenticated) {
		if c, cerr := r.Cookie(s.cookieName); cerr == nil && c.Value != "" {
			s.clearSessionCookie(w)
		}
	}
	writeJSON(w, status, errorResponse{Error: publicMessage(err)})
}

// decode reads a JSON body into dst. A missing body decodes as empty.
func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return errInvalidPayload
	}
	return nil
}

func (s *Server) writeBadRequest(w http.ResponseWriter) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: errInvalidPayload.Error()})
}
