package server

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/fieldforms/pkg/types"
)

// Cookie session settings.
const (
	CookieName      = "fieldforms-session"
	cookieTokenKey  = "token"
	tokenIssuer     = "fieldforms"
	DefaultTokenTTL = 12 * time.Hour
)

// ErrInvalidToken is returned for tokens that fail signature or claim checks.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the JWT payload for a session. The subject is the user ID.
type Claims struct {
	jwt.RegisteredClaims
	TenantID string `json:"tid"`
	Role     string `json:"role"`
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	FieldID  string `json:"fid,omitempty"`
}

// Tokens signs and verifies HS256 session tokens.
type Tokens struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewTokens derives a signing key from secret.
func NewTokens(secret string, ttl time.Duration) *Tokens {
	key := sha256.Sum256([]byte(secret))
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Tokens{key: key[:], ttl: ttl, now: time.Now}
}

// Issue returns a signed token for sess and its expiry.
func (t *Tokens) Issue(sess *types.Session) (string, time.Time, error) {
	now := t.now()
	exp := now.Add(t.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   sess.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		TenantID: sess.TenantID,
		Role:     string(sess.Role),
		Name:     sess.UserName,
		Email:    sess.Email,
		FieldID:  sess.FieldID,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Parse verifies token and returns the session it carries.
func (t *Tokens) Parse(token string) (*types.Session, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return t.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	sess := &types.Session{
		TenantID: claims.TenantID,
		Role:     types.Role(claims.Role),
		UserID:   claims.Subject,
		UserName: claims.Name,
		Email:    claims.Email,
		FieldID:  claims.FieldID,
	}
	if err := sess.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return sess, nil
}

// newCookieStore returns the signed cookie store holding the session token.
func newCookieStore(secret string, ttl time.Duration, secure bool) *sessions.CookieStore {
	key := sha256.Sum256([]byte("cookie:" + secret))
	store := sessions.NewCookieStore(key[:])
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	}
	return store
}

func (s *Server) cookieToken(r *http.Request) string {
	sess, err := s.cookies.Get(r, CookieName)
	if err != nil {
		return ""
	}
	tok, _ := sess.Values[cookieTokenKey].(string)
	return tok
}

type loginResponse struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
	Session   *types.Session `json:"session"`
}

// startSession issues a token, stores it in the cookie and writes it back.
func (s *Server) startSession(w http.ResponseWriter, r *http.Request, sess *types.Session) {
	token, exp, err := s.tokens.Issue(sess)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	cs, _ := s.cookies.Get(r, CookieName)
	cs.Values[cookieTokenKey] = token
	if err := cs.Save(r, w); err != nil {
		s.logger.Warn("save session cookie", zap.Error(err))
	}
	s.writeJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: exp, Session: sess})
}

type agentLogin struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleAgentLogin(w http.ResponseWriter, r *http.Request) {
	var req agentLogin
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "INVALID_JSON", "invalid JSON body")
		return
	}
	sess, err := s.app.Agents.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.startSession(w, r, sess)
}

type adminLogin struct {
	TenantID string `json:"tenant_id"`
	Name     string `json:"name"`
	Key      string `json:"key"`
}

// handleAdminLogin opens an admin session for a tenant. When an admin key
// is configured it must match; without one any tenant may log in, which
// is only suitable for local use.
func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var req adminLogin
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "INVALID_JSON", "invalid JSON body")
		return
	}
	req.TenantID = strings.TrimSpace(req.TenantID)
	if req.TenantID == "" {
		s.writeServiceError(w, &types.ValidationError{Messages: []string{"Tenant ID is required"}})
		return
	}
	if s.cfg.AdminKey != "" && subtle.ConstantTimeCompare([]byte(req.Key), []byte(s.cfg.AdminKey)) != 1 {
		s.writeServiceError(w, types.ErrInvalidCredentials)
		return
	}
	s.startSession(w, r, types.NewAdminSession(req.TenantID, req.Name))
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	cs, _ := s.cookies.Get(r, CookieName)
	delete(cs.Values, cookieTokenKey)
	cs.Options.MaxAge = -1
	if err := cs.Save(r, w); err != nil {
		s.logger.Warn("clear session cookie", zap.Error(err))
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, SessionFrom(r.Context()))
}

func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("read random secret: %v", err))
	}
	return hex.EncodeToString(b)
}
