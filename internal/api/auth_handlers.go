package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/routecore/platform/internal/apperr"
	"github.com/routecore/platform/internal/audit"
	"github.com/routecore/platform/internal/invite"
	"github.com/routecore/platform/internal/login"
	"github.com/routecore/platform/internal/refresh"
	"github.com/routecore/platform/internal/reqctx"
	"github.com/routecore/platform/internal/storage"
)

type AuthHandler struct {
	pool    *pgxpool.Pool
	login   *login.Service
	refresh *refresh.Service
	invite  *invite.Service
	cookies CookieConfig
	audit   audit.Logger
}

// CookieConfig controls the access/refresh cookie attributes; wired from
// config at startup so local development (no domain, SameSite=Lax) and
// production (explicit domain, SameSite=None behind TLS) share one code
// path.
type CookieConfig struct {
	Domain          string
	SameSite        http.SameSite
	Secure          bool
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

func NewAuthHandler(pool *pgxpool.Pool, loginSvc *login.Service, refreshSvc *refresh.Service, inviteSvc *invite.Service, cookies CookieConfig, auditLogger audit.Logger) *AuthHandler {
	return &AuthHandler{pool: pool, login: loginSvc, refresh: refreshSvc, invite: inviteSvc, cookies: cookies, audit: auditLogger}
}

type loginWebRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *AuthHandler) LoginWeb(w http.ResponseWriter, r *http.Request) {
	var req loginWebRequest
	if err := decodeJSON(r, &req); err != nil {
		apperr.WriteError(w, apperr.BadRequestf("%v", err))
		return
	}

	result, err := h.login.LoginWeb(r.Context(), req.Username, req.Password)
	if err != nil {
		h.audit.Log(r.Context(), audit.EventLoginFailed, "", "", "", map[string]any{"username": req.Username, "actorType": "web"})
		apperr.WriteError(w, err)
		return
	}

	h.setAuthCookies(w, result.AccessToken, result.RefreshToken)
	h.audit.Log(r.Context(), audit.EventLoginSuccess, "", result.UserID, result.UserID, map[string]any{"actorType": "web"})
	respondJSON(w, http.StatusOK, map[string]any{"expiresAt": result.ExpiresAt})
}

type loginMobileRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	CompanyID string `json:"companyId,omitempty"`
}

func (h *AuthHandler) LoginMobile(w http.ResponseWriter, r *http.Request) {
	var req loginMobileRequest
	if err := decodeJSON(r, &req); err != nil {
		apperr.WriteError(w, apperr.BadRequestf("%v", err))
		return
	}

	result, err := h.login.LoginMobile(r.Context(), req.Username, req.Password, req.CompanyID)
	if err != nil {
		h.audit.Log(r.Context(), audit.EventLoginFailed, req.CompanyID, "", "", map[string]any{"username": req.Username, "actorType": "mobile"})
		apperr.WriteError(w, err)
		return
	}

	// Refresh token goes in the body, not a cookie -- mobile clients don't
	// carry a cookie jar the way a browser does (§6.3).
	h.setAccessCookie(w, result.AccessToken)
	h.audit.Log(r.Context(), audit.EventLoginSuccess, "", result.UserID, result.UserID, map[string]any{"actorType": "mobile"})
	respondJSON(w, http.StatusOK, map[string]any{"expiresAt": result.ExpiresAt, "refreshToken": result.RefreshToken})
}

// Refresh rotates the refresh token presented in the cookie or the
// request body, per C7. It
// runs outside the C5 pipeline entirely -- there's no tenant actor yet,
// only a bearer of a prior refresh token -- so it opens its own
// transaction directly.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	presented, fromCookie := extractRefreshToken(r)
	if presented == "" {
		apperr.WriteError(w, apperr.Unauthenticatedf("no refresh token presented"))
		return
	}

	var rotated refresh.RotateResult
	var rotateErr error
	txErr := storage.WithSystemTx(r.Context(), h.pool, func(tx pgx.Tx) error {
		res, err := h.refresh.Rotate(r.Context(), tx, presented)
		if err != nil {
			if apperr.ReasonOf(err) == "reuse-detected" {
				// Commit the family revocation Rotate made before failing.
				rotateErr = err
				return nil
			}
			return err
		}
		rotated = res
		return nil
	})
	if rotateErr == nil {
		rotateErr = txErr
	}
	if rotateErr != nil {
		h.clearAuthCookies(w)
		if apperr.ReasonOf(rotateErr) == "reuse-detected" {
			h.audit.Log(r.Context(), audit.EventReuseDetected, "", rotated.UserID, rotated.UserID, nil)
		}
		apperr.WriteError(w, rotateErr)
		return
	}

	access, expiresAt, err := h.login.ReissueAccessToken(r.Context(), rotated.UserID, rotated.MobileUserID)
	if err != nil {
		apperr.WriteError(w, err)
		return
	}

	h.setAccessCookie(w, access)
	h.audit.Log(r.Context(), audit.EventRefreshRotated, "", rotated.UserID, rotated.UserID, nil)
	if fromCookie {
		h.setRefreshCookie(w, rotated.NewToken.Raw)
		respondJSON(w, http.StatusOK, map[string]any{"expiresAt": expiresAt})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"expiresAt": expiresAt, "refreshToken": rotated.NewToken.Raw})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if presented, _ := extractRefreshToken(r); presented != "" {
		_ = storage.WithSystemTx(r.Context(), h.pool, func(tx pgx.Tx) error {
			return h.refresh.Revoke(r.Context(), tx, presented)
		})
	}
	h.clearAuthCookies(w)
	w.WriteHeader(http.StatusNoContent)
}

// extractRefreshToken prefers the cookie (web clients); mobile clients
// carry no cookie jar and present the token in the JSON body instead
// (§6.3). The bool reports whether it came from the cookie, so the
// caller can mirror the same delivery channel back.
func extractRefreshToken(r *http.Request) (string, bool) {
	if cookie, err := r.Cookie("refresh_token"); err == nil && cookie.Value != "" {
		return cookie.Value, true
	}
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
		return body.RefreshToken, false
	}
	return "", false
}

type registerRequest struct {
	Code     string `json:"code"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// Register is C9's invite-code registration endpoint. It deliberately
// does not log the new user in -- the follow-up login call is a separate
// request per spec §4.9, so this handler only returns 201.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		apperr.WriteError(w, apperr.BadRequestf("%v", err))
		return
	}

	u, err := h.invite.Register(r.Context(), req.Code, req.Username, req.Password)
	if err != nil {
		apperr.WriteError(w, err)
		return
	}

	h.audit.Log(r.Context(), audit.EventInviteUsed, u.CompanyID, u.ID, u.ID, map[string]any{"username": u.Username})
	respondJSON(w, http.StatusCreated, map[string]any{"userId": u.ID})
}

// Me returns the installed request context's actor identity -- the
// simplest possible illustration of an authenticated, C5-bound route.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	rc, ok := reqctx.Get(r.Context())
	if !ok {
		apperr.WriteError(w, apperr.Unauthenticatedf("no authenticated actor"))
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"userId":       rc.UserID,
		"actorType":    rc.ActorType,
		"companyId":    rc.CompanyID,
		"branchId":     rc.BranchID,
		"roleName":     rc.RoleName,
		"isSuperAdmin": rc.IsSuperAdmin,
		"permissions":  rc.Permissions,
	})
}

func (h *AuthHandler) setAuthCookies(w http.ResponseWriter, accessToken, refreshToken string) {
	h.setAccessCookie(w, accessToken)
	h.setRefreshCookie(w, refreshToken)
}

func (h *AuthHandler) setAccessCookie(w http.ResponseWriter, accessToken string) {
	http.SetCookie(w, &http.Cookie{
		Name:     "access_token",
		Value:    accessToken,
		Path:     "/",
		Domain:   h.cookies.Domain,
		MaxAge:   int(h.cookies.AccessTokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: h.cookies.SameSite,
	})
}

func (h *AuthHandler) setRefreshCookie(w http.ResponseWriter, refreshToken string) {
	http.SetCookie(w, &http.Cookie{
		Name:     "refresh_token",
		Value:    refreshToken,
		Path:     "/",
		Domain:   h.cookies.Domain,
		MaxAge:   int(h.cookies.RefreshTokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: h.cookies.SameSite,
	})
}

func (h *AuthHandler) clearAuthCookies(w http.ResponseWriter) {
	for _, name := range []string{"access_token", "refresh_token"} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			Domain:   h.cookies.Domain,
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   h.cookies.Secure,
			SameSite: h.cookies.SameSite,
		})
	}
}
