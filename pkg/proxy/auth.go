package proxy

import (
	"context"
	"net/http"
	"strings"

	"github.com/ZakWinnick/StatsForAdventure/internal/log"
	"github.com/ZakWinnick/StatsForAdventure/pkg/account"
	"github.com/ZakWinnick/StatsForAdventure/pkg/session"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type otpRequest struct {
	Email           string `json:"email"`
	OTPCode         string `json:"otp_code"`
	OTPToken        string `json:"otp_token"`
	CSRFToken       string `json:"csrf_token"`
	AppSessionToken string `json:"app_session_token"`
}

func (p *Proxy) serveAuth(w http.ResponseWriter, req *http.Request, action string) {
	if action == "logout" {
		p.handleLogout(w, req)
		return
	}
	if req.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, nil)
		return
	}
	switch action {
	case "login":
		p.handleLogin(w, req)
	case "otp":
		p.handleOTP(w, req)
	default:
		writeJSONError(w, http.StatusNotFound, nil)
	}
}

func (p *Proxy) handleLogin(w http.ResponseWriter, req *http.Request) {
	var body loginRequest
	if err := decodeBody(req, &body); err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	if body.Email == "" || body.Password == "" {
		writeJSONError(w, http.StatusBadRequest, &requestError{message: "email and password are required"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.Timeout)
	defer cancel()

	tokens, err := p.gateway.CreateCSRFToken(ctx)
	if err != nil {
		writeJSONError(w, statusForError(err), err)
		return
	}
	result, err := p.gateway.Authenticate(ctx, tokens, body.Email, body.Password)
	if err != nil {
		writeJSONError(w, statusForError(err), err)
		return
	}

	if result.OTPNeeded {
		// The OTP bootstrap tokens go back to the client, which replays them on the OTP
		// endpoint; the proxy holds no state for half-finished logins.
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":            "success",
			"otp_needed":        true,
			"otp_token":         result.OTPToken,
			"csrf_token":        result.Tokens.CSRFToken,
			"app_session_token": result.Tokens.AppSessionToken,
		})
		return
	}

	p.finishLogin(ctx, w, body.Email, result.Tokens)
}

func (p *Proxy) handleOTP(w http.ResponseWriter, req *http.Request) {
	var body otpRequest
	if err := decodeBody(req, &body); err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	if body.Email == "" || body.OTPCode == "" || body.OTPToken == "" {
		writeJSONError(w, http.StatusBadRequest, &requestError{message: "email, otp_code, and otp_token are required"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.Timeout)
	defer cancel()

	bootstrap := account.TokenSet{CSRFToken: body.CSRFToken, AppSessionToken: body.AppSessionToken}
	result, err := p.gateway.ValidateOTP(ctx, bootstrap, body.Email, body.OTPCode, body.OTPToken)
	if err != nil {
		writeJSONError(w, statusForError(err), err)
		return
	}

	p.finishLogin(ctx, w, body.Email, result.Tokens)
}

// finishLogin fetches the vehicle directory, registers the session, and hands the client its
// bearer token.
func (p *Proxy) finishLogin(ctx context.Context, w http.ResponseWriter, email string, tokens account.TokenSet) {
	if !tokens.Complete() {
		writeJSONError(w, http.StatusBadGateway, &requestError{message: "cloud service issued an incomplete token set"})
		return
	}

	acct := account.New(email, tokens)
	vehicles, err := p.gateway.CurrentUser(ctx, tokens)
	if err != nil {
		writeJSONError(w, statusForError(err), err)
		return
	}
	acct.SetVehicles(vehicles)

	_, bearer, err := p.sessions.Create(acct)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err)
		return
	}
	log.Info("Authenticated %s with %d vehicles", email, len(vehicles))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "success",
		"token":    bearer,
		"vehicles": vehicles,
	})
}

func (p *Proxy) handleLogout(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, nil)
		return
	}
	bearer, ok := strings.CutPrefix(req.Header.Get("Authorization"), "Bearer ")
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, session.ErrInvalidToken)
		return
	}
	if err := p.sessions.Revoke(bearer); err != nil {
		writeJSONError(w, http.StatusUnauthorized, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}
