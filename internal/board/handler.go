package board

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/minibb/minibb/internal/auth"
	"github.com/minibb/minibb/internal/models"
	"github.com/minibb/minibb/internal/store"
	"github.com/minibb/minibb/internal/web"
)

// Store defines the interface for post and comment persistence.
type Store interface {
	CreatePost(ctx context.Context, userID int64, title, content string) (*models.Post, error)
	GetPost(ctx context.Context, id int64) (*models.Post, error)
	UpdatePost(ctx context.Context, id int64, title, content string) error
	DeletePost(ctx context.Context, id int64) error
	ListPosts(ctx context.Context) ([]models.PostView, error)
	SearchPosts(ctx context.Context, query string) ([]models.PostView, error)
	CreateComment(ctx context.Context, postID, userID int64, content string) (*models.Comment, error)
}

// Handler holds the post, comment and search HTTP handlers.
type Handler struct {
	store Store
	auth  *auth.Handler
}

func NewHandler(s Store, a *auth.Handler) *Handler {
	return &Handler{store: s, auth: a}
}

// Index lists every post, newest first, with comments and authors.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	posts, err := h.store.ListPosts(r.Context())
	if err != nil {
		http.Error(w, "database error", http.StatusInternalServerError)
		return
	}
	web.Render(w, "index.html", &web.Page{
		Title: "Posts",
		User:  h.auth.Viewer(r),
		Flash: web.TakeFlash(w, r),
		Posts: posts,
	})
}

// NewPostPage renders the post creation form.
func (h *Handler) NewPostPage(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	web.Render(w, "post.html", &web.Page{
		Title: "New Post",
		User:  user,
		Flash: web.TakeFlash(w, r),
	})
}

// CreatePost stores a new post owned by the caller.
func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	// A missing field is a bad request; empty values are stored as-is.
	if !r.PostForm.Has("title") || !r.PostForm.Has("content") {
		http.Error(w, "title and content fields are required", http.StatusBadRequest)
		return
	}

	if _, err := h.store.CreatePost(r.Context(), user.ID, r.FormValue("title"), r.FormValue("content")); err != nil {
		http.Error(w, "database error", http.StatusInternalServerError)
		return
	}
	web.SetFlash(w, "Posted.")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// UpdatePostPage renders the edit form pre-filled with the current post,
// applying the same owner check as the submission.
func (h *Handler) UpdatePostPage(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	post, ok := h.ownedPost(w, r, user)
	if !ok {
		return
	}
	web.Render(w, "update.html", &web.Page{
		Title: "Edit Post",
		User:  user,
		Flash: web.TakeFlash(w, r),
		Post:  post,
	})
}

// UpdatePost overwrites title and content of a post the caller owns. The
// creation timestamp is not refreshed.
func (h *Handler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	post, ok := h.ownedPost(w, r, user)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	if !r.PostForm.Has("title") || !r.PostForm.Has("content") {
		http.Error(w, "title and content fields are required", http.StatusBadRequest)
		return
	}

	if err := h.store.UpdatePost(r.Context(), post.ID, r.FormValue("title"), r.FormValue("content")); err != nil {
		http.Error(w, "database error", http.StatusInternalServerError)
		return
	}
	web.SetFlash(w, "Post updated.")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// DeletePost removes a post the caller owns together with its comments.
func (h *Handler) DeletePost(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	post, ok := h.ownedPost(w, r, user)
	if !ok {
		return
	}

	if err := h.store.DeletePost(r.Context(), post.ID); err != nil {
		http.Error(w, "database error", http.StatusInternalServerError)
		return
	}
	web.SetFlash(w, "Post deleted.")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// AddComment attaches a comment to an existing post. Any authenticated user
// may comment; a missing post is a plain 404.
func (h *Handler) AddComment(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	id, err := postID(r)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	post, err := h.store.GetPost(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.NotFound(w, r)
		} else {
			http.Error(w, "database error", http.StatusInternalServerError)
		}
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	if !r.PostForm.Has("content") {
		http.Error(w, "content field is required", http.StatusBadRequest)
		return
	}

	if _, err := h.store.CreateComment(r.Context(), post.ID, user.ID, r.FormValue("content")); err != nil {
		http.Error(w, "database error", http.StatusInternalServerError)
		return
	}
	web.SetFlash(w, "Comment added.")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Search lists posts containing the query as a substring of title or
// content. An empty query matches everything, like LIKE '%%' does.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	posts, err := h.store.SearchPosts(r.Context(), query)
	if err != nil {
		http.Error(w, "database error", http.StatusInternalServerError)
		return
	}
	web.Render(w, "search.html", &web.Page{
		Title: "Search",
		User:  h.auth.Viewer(r),
		Flash: web.TakeFlash(w, r),
		Posts: posts,
		Query: query,
	})
}

// currentUser loads the user row for the session-held id. A stale id that
// no longer resolves to a row means the caller is unauthenticated.
func (h *Handler) currentUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	user := h.auth.Viewer(r)
	if user == nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return nil, false
	}
	return user, true
}

// ownedPost loads the post from the URL and enforces the owner-only rule.
// Both a missing post and a foreign post flash and bounce to the index.
func (h *Handler) ownedPost(w http.ResponseWriter, r *http.Request, user *models.User) (*models.Post, bool) {
	id, err := postID(r)
	if err != nil {
		web.SetFlash(w, "Post not found.")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return nil, false
	}
	post, err := h.store.GetPost(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			web.SetFlash(w, "Post not found.")
			http.Redirect(w, r, "/", http.StatusSeeOther)
		} else {
			http.Error(w, "database error", http.StatusInternalServerError)
		}
		return nil, false
	}
	if post.UserID != user.ID {
		web.SetFlash(w, "You do not have permission to modify this post.")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return nil, false
	}
	return post, true
}

func postID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
