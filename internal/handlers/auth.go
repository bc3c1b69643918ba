package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/MegaGrindStone/support-chat/internal/auth"
	"github.com/MegaGrindStone/support-chat/internal/models"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type sessionResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

type userContextKey struct{}

// SessionCookie is the name of the cookie carrying the session token of browsers.
const SessionCookie = "supportchat_session"

const minPasswordLength = 6

var errInvalidCredentials = errors.New("invalid email or password")

// HandleSignUp creates an account and signs it in. It accepts a JSON body or a form post; form posts are
// redirected to the home page.
func (m Main) HandleSignUp(w http.ResponseWriter, r *http.Request) {
	creds, err := readCredentials(r)
	if err != nil {
		m.authFailure(w, r, bodyErrorStatus(err), err.Error())
		return
	}
	if _, err := mail.ParseAddress(creds.Email); err != nil {
		m.authFailure(w, r, http.StatusBadRequest, "a valid email is required")
		return
	}
	if len(creds.Password) < minPasswordLength {
		m.authFailure(w, r, http.StatusBadRequest, "password must be at least 6 characters")
		return
	}

	hash, err := auth.HashPassword(creds.Password)
	if err != nil {
		m.logger.Error("Failed to hash password", slog.String(errLoggerKey, err.Error()))
		m.authFailure(w, r, http.StatusInternalServerError, "failed to create account")
		return
	}

	user := models.User{
		Email:        strings.TrimSpace(creds.Email),
		Name:         strings.TrimSpace(creds.Name),
		PasswordHash: hash,
		CreatedAt:    time.Now(),
	}
	user.ID, err = m.store.AddUser(r.Context(), user)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			m.authFailure(w, r, http.StatusConflict, "an account with this email already exists")
			return
		}
		m.logger.Error("Failed to add user", slog.String(errLoggerKey, err.Error()))
		m.authFailure(w, r, http.StatusInternalServerError, "failed to create account")
		return
	}
	user.Email = strings.ToLower(user.Email)

	m.startSession(w, r, user, http.StatusCreated)
}

// HandleSignIn verifies the credentials and issues a session token, both as a cookie and in the JSON
// response.
func (m Main) HandleSignIn(w http.ResponseWriter, r *http.Request) {
	creds, err := readCredentials(r)
	if err != nil {
		m.authFailure(w, r, bodyErrorStatus(err), err.Error())
		return
	}

	user, err := m.store.UserByEmail(r.Context(), strings.TrimSpace(creds.Email))
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		m.logger.Error("Failed to get user", slog.String(errLoggerKey, err.Error()))
		m.authFailure(w, r, http.StatusInternalServerError, "failed to sign in")
		return
	}
	if err != nil || !auth.CheckPassword(user.PasswordHash, creds.Password) {
		m.authFailure(w, r, http.StatusUnauthorized, errInvalidCredentials.Error())
		return
	}

	m.startSession(w, r, user, http.StatusOK)
}

// HandleSignOut revokes the current session token and clears the cookie.
func (m Main) HandleSignOut(w http.ResponseWriter, r *http.Request) {
	if token := sessionToken(r); token != "" {
		claims, err := auth.ParseJWT(token, m.secret)
		if err == nil {
			if err := m.revoker.Revoke(r.Context(), claims.ID, claims.ExpiresIn()); err != nil {
				m.logger.Error("Failed to revoke token", slog.String(errLoggerKey, err.Error()))
				writeError(w, http.StatusInternalServerError, "failed to sign out")
				return
			}
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	if isForm(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleMe returns the signed-in user.
func (m Main) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "sign in required")
		return
	}
	writeJSON(w, http.StatusOK, newUserResponse(user))
}

// RequireUser rejects requests without a valid session with 401 and passes the user to next through the
// request context.
func (m Main) RequireUser(next http.HandlerFunc) http.HandlerFunc {
	return m.withUser(next, func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusUnauthorized, "sign in required")
	})
}

// RequireUserPage is RequireUser for browser form posts: anonymous visitors are sent to the sign-in page.
func (m Main) RequireUserPage(next http.HandlerFunc) http.HandlerFunc {
	return m.withUser(next, func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
	})
}

func (m Main) withUser(next, anonymous http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := m.currentUser(r)
		if !ok {
			anonymous(w, r)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), userContextKey{}, user)))
	}
}

// currentUser resolves the user of the session token carried by r. Expired, revoked or otherwise invalid
// tokens resolve to no user.
func (m Main) currentUser(r *http.Request) (models.User, bool) {
	if user, ok := userFromContext(r.Context()); ok {
		return user, true
	}

	token := sessionToken(r)
	if token == "" {
		return models.User{}, false
	}

	claims, err := auth.ParseJWT(token, m.secret)
	if err != nil {
		m.logger.Debug("Rejected session token", slog.String(errLoggerKey, err.Error()))
		return models.User{}, false
	}

	revoked, err := m.revoker.Revoked(r.Context(), claims.ID)
	if err != nil {
		m.logger.Error("Failed to check token revocation", slog.String(errLoggerKey, err.Error()))
		return models.User{}, false
	}
	if revoked {
		return models.User{}, false
	}

	user, err := m.store.User(r.Context(), claims.Subject)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			m.logger.Error("Failed to get user", slog.String(errLoggerKey, err.Error()))
		}
		return models.User{}, false
	}
	return user, true
}

func (m Main) startSession(w http.ResponseWriter, r *http.Request, user models.User, status int) {
	token, claims, err := auth.SignJWT(user.ID, user.DisplayName(), m.secret, m.tokenTTL)
	if err != nil {
		m.logger.Error("Failed to sign token", slog.String(errLoggerKey, err.Error()))
		m.authFailure(w, r, http.StatusInternalServerError, "failed to start session")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  claims.ExpiresAt.Time,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	if isForm(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	writeJSON(w, status, sessionResponse{Token: token, User: newUserResponse(user)})
}

// authFailure answers API clients with a JSON error and browsers with the sign-in page showing message.
func (m Main) authFailure(w http.ResponseWriter, r *http.Request, status int, message string) {
	if !isForm(r) {
		writeError(w, status, message)
		return
	}
	w.WriteHeader(status)
	if err := m.templates.ExecuteTemplate(w, "signin.html", signInPageData{Error: message}); err != nil {
		m.logger.Error("Failed to render sign-in page", slog.String(errLoggerKey, err.Error()))
	}
}

func readCredentials(r *http.Request) (credentials, error) {
	var creds credentials
	if isForm(r) {
		creds = credentials{
			Email:    r.FormValue("email"),
			Password: r.FormValue("password"),
			Name:     r.FormValue("name"),
		}
	} else if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		return credentials{}, fmt.Errorf("invalid request body: %w", err)
	}

	if creds.Email == "" || creds.Password == "" {
		return credentials{}, errors.New("email and password are required")
	}
	return creds, nil
}

func sessionToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

func isForm(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	return mediaType == "application/x-www-form-urlencoded" || mediaType == "multipart/form-data"
}

func userFromContext(ctx context.Context) (models.User, bool) {
	user, ok := ctx.Value(userContextKey{}).(models.User)
	return user, ok
}

func newUserResponse(u models.User) userResponse {
	return userResponse{ID: u.ID, Email: u.Email, Name: u.DisplayName()}
}
