package httpapi

import (
	"context"
	"net/http"

	postAuth "github.com/MrEthical07/postAuth"
	"github.com/MrEthical07/postAuth/middleware"
)

type registerResponse struct {
	RecoveryCodes []string `json:"recoveryCodes"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type verifyRequest struct {
	Username string `json:"username"`
	SMSToken string `json:"smsToken"`
}

type verifyResponse struct {
	Role       postAuth.Role `json:"role"`
	TOTPSecret *string       `json:"totpSecret"`
}

type totpVerifyRequest struct {
	TOTPToken  string `json:"totpToken"`
	TOTPSecret string `json:"totpSecret"`
}

type phoneRequest struct {
	PhoneNumber string `json:"phoneNumber"`
}

type phoneConfirmRequest struct {
	SMSToken string `json:"smsToken"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req postAuth.RegisterInput
	if err := decode(w, r, &req); err != nil {
		s.writeBadRequest(w)
		return
	}
	res, err := s.engine.Register(s.requestContext(r), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, registerResponse{RecoveryCodes: res.RecoveryCodes})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(w, r, &req); err != nil {
		s.writeBadRequest(w)
		return
	}
	if err := s.engine.Login(s.requestContext(r), req.Username, req.Password); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "sms token sent"})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decode(w, r, &req); err != nil {
		s.writeBadRequest(w)
		return
	}
	res, err := s.engine.Verify(s.requestContext(r), req.Username, req.SMSToken)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.setSessionCookie(w, res.SessionToken, res.ExpiresAt)
	out := verifyResponse{Role: res.Role}
	if res.TOTPSecret != "" {
		out.TOTPSecret = &res.TOTPSecret
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.engine.Logout(s.requestContext(r), middleware.TokenFromRequest(r, s.cookieName))
	s.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, messageResponse{Message: "logged out"})
}

func (s *Server) handleIsAuthenticated(w http.ResponseWriter, r *http.Request) {
	token := middleware.TokenFromRequest(r, s.cookieName)
	ok := token != "" && s.engine.IsAuthenticated(r.Context(), token)
	if !ok && token != "" {
		s.clearSessionCookie(w)
	}
	writeJSON(w, http.StatusOK, ok)
}

func (s *Server) handleIsAdmin(w http.ResponseWriter, r *http.Request) {
	token := middleware.TokenFromRequest(r, s.cookieName)
	admin := false
	if token != "" {
		admin, _ = s.engine.IsAdmin(r.Context(), token)
	}
	writeJSON(w, http.StatusOK, admin)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.engine.Profile(r.Context(), middleware.TokenFromContext(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleTOTPSetup(w http.ResponseWriter, r *http.Request) {
	setup, err := s.engine.TOTPSetup(s.requestContext(r), middleware.TokenFromContext(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, setup)
}

func (s *Server) handleTOTPVerify(w http.ResponseWriter, r *http.Request) {
	var req totpVerifyRequest
	if err := decode(w, r, &req); err != nil {
		s.writeBadRequest(w)
		return
	}
	res, err := s.engine.TOTPVerify(s.requestContext(r), middleware.TokenFromContext(r.Context()), req.TOTPToken, req.TOTPSecret)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handlePhoneChange(w http.ResponseWriter, r *http.Request) {
	var req phoneRequest
	if err := decode(w, r, &req); err != nil {
		s.writeBadRequest(w)
		return
	}
	if err := s.engine.RequestPhoneChange(s.requestContext(r), middleware.TokenFromContext(r.Context()), req.PhoneNumber); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "sms token sent"})
}

func (s *Server) handlePhoneConfirm(w http.ResponseWriter, r *http.Request) {
	var req phoneConfirmRequest
	if err := decode(w, r, &req); err != nil {
		s.writeBadRequest(w)
		return
	}
	if err := s.engine.ConfirmPhoneChange(s.requestContext(r), middleware.TokenFromContext(r.Context()), req.SMSToken); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "phone number updated"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.healthTimeout)
	defer cancel()
	if err := s.engine.Ping(ctx); err != nil {
		s.logger.Warn("health check failed", s.requestFields(r, err)...)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
