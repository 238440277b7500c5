package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/minibb/minibb/internal/models"
	"github.com/minibb/minibb/internal/store"
	"github.com/minibb/minibb/internal/web"
)

// UserStore defines the interface for user persistence.
type UserStore interface {
	CreateUser(ctx context.Context, username, hashedPassword string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
}

// Handler holds auth-related HTTP handlers.
type Handler struct {
	users    UserStore
	sessions Sessions
}

func NewHandler(users UserStore, sessions Sessions) *Handler {
	return &Handler{users: users, sessions: sessions}
}

// RegisterPage renders the registration form.
func (h *Handler) RegisterPage(w http.ResponseWriter, r *http.Request) {
	web.Render(w, "register.html", &web.Page{
		Title: "Register",
		User:  h.Viewer(r),
		Flash: web.TakeFlash(w, r),
	})
}

// Register creates a new user. The raw password is bcrypt-hashed before it
// reaches the store and is never logged.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	// A missing field is a bad request; an empty value is accepted as-is.
	if !r.PostForm.Has("username") || !r.PostForm.Has("password") {
		http.Error(w, "username and password fields are required", http.StatusBadRequest)
		return
	}
	username := r.FormValue("username")
	password := r.FormValue("password")

	_, err := h.users.GetUserByUsername(r.Context(), username)
	if err == nil {
		web.SetFlash(w, "That username is already taken.")
		http.Redirect(w, r, "/register", http.StatusSeeOther)
		return
	}
	if !errors.Is(err, store.ErrNotFound) {
		http.Error(w, "database error", http.StatusInternalServerError)
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if _, err := h.users.CreateUser(r.Context(), username, string(hashed)); err != nil {
		http.Error(w, "database error", http.StatusInternalServerError)
		return
	}

	web.SetFlash(w, "Registration complete. Please log in.")
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// LoginPage renders the login form.
func (h *Handler) LoginPage(w http.ResponseWriter, r *http.Request) {
	web.Render(w, "login.html", &web.Page{
		Title: "Login",
		User:  h.Viewer(r),
		Flash: web.TakeFlash(w, r),
	})
}

// Login authenticates a user and creates a session. Failures re-render the
// login page with one generic message, never saying which field was wrong.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	if !r.PostForm.Has("username") || !r.PostForm.Has("password") {
		http.Error(w, "username and password fields are required", http.StatusBadRequest)
		return
	}
	username := r.FormValue("username")
	password := r.FormValue("password")

	user, err := h.users.GetUserByUsername(r.Context(), username)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		http.Error(w, "database error", http.StatusInternalServerError)
		return
	}
	if err != nil || bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		web.Render(w, "login.html", &web.Page{
			Title: "Login",
			Flash: "Invalid username or password.",
		})
		return
	}

	sid, err := h.sessions.Create(r.Context(), user.ID)
	if err != nil {
		http.Error(w, "session creation failed", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    sid,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(SessionTTL / time.Second),
	})

	web.SetFlash(w, "Logged in.")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Logout destroys the current session unconditionally.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(SessionCookie)
	if err == nil {
		h.sessions.Delete(r.Context(), cookie.Value)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})

	web.SetFlash(w, "Logged out.")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Viewer resolves the request's session to a user, or nil when the caller
// is anonymous or the session-held id no longer matches a row. Behind
// RequireAuth the id comes from the request context; public pages fall back
// to the session cookie.
func (h *Handler) Viewer(r *http.Request) *models.User {
	if id, ok := r.Context().Value("user_id").(int64); ok {
		user, err := h.users.GetUserByID(r.Context(), id)
		if err != nil {
			return nil
		}
		return user
	}

	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		return nil
	}
	id, err := h.sessions.Get(r.Context(), cookie.Value)
	if err != nil || id == 0 {
		return nil
	}
	user, err := h.users.GetUserByID(r.Context(), id)
	if err != nil {
		return nil
	}
	return user
}
