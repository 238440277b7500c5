package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/minibb/minibb/internal/models"
)

// ErrNotFound is returned when a row does not exist. Handlers check it
// with errors.Is instead of importing pgx.
var ErrNotFound = errors.New("not found")

// PostgresStore handles all relational CRUD against PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the users, posts and comments tables if they don't exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id       BIGSERIAL PRIMARY KEY,
			username VARCHAR(80)  UNIQUE NOT NULL,
			password VARCHAR(200) NOT NULL,
			is_admin BOOLEAN      NOT NULL DEFAULT FALSE
		);
		CREATE TABLE IF NOT EXISTS posts (
			id        BIGSERIAL PRIMARY KEY,
			title     VARCHAR(200) NOT NULL,
			content   TEXT         NOT NULL,
			timestamp TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			user_id   BIGINT       NOT NULL REFERENCES users(id)
		);
		CREATE TABLE IF NOT EXISTS comments (
			id        BIGSERIAL PRIMARY KEY,
			content   TEXT        NOT NULL,
			timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			user_id   BIGINT      NOT NULL REFERENCES users(id),
			post_id   BIGINT      NOT NULL REFERENCES posts(id)
		)
	`)
	return err
}

// ── Users ────────────────────────────────────────────────────────────

func (s *PostgresStore) CreateUser(ctx context.Context, username, hashedPassword string) (*models.User, error) {
	var u models.User
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (username, password)
		 VALUES ($1, $2)
		 RETURNING id, username, password, is_admin`,
		username, hashedPassword,
	).Scan(&u.ID, &u.Username, &u.Password, &u.IsAdmin)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &u, nil
}

func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, password, is_admin FROM users WHERE username = $1`, username,
	).Scan(&u.ID, &u.Username, &u.Password, &u.IsAdmin)
	if err != nil {
		return nil, notFoundOr(err)
	}
	return &u, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, password, is_admin FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Username, &u.Password, &u.IsAdmin)
	if err != nil {
		return nil, notFoundOr(err)
	}
	return &u, nil
}

// ── Posts ────────────────────────────────────────────────────────────

func (s *PostgresStore) CreatePost(ctx context.Context, userID int64, title, content string) (*models.Post, error) {
	var p models.Post
	err := s.pool.QueryRow(ctx,
		`INSERT INTO posts (title, content, user_id)
		 VALUES ($1, $2, $3)
		 RETURNING id, title, content, timestamp, user_id`,
		title, content, userID,
	).Scan(&p.ID, &p.Title, &p.Content, &p.Timestamp, &p.UserID)
	if err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	return &p, nil
}

func (s *PostgresStore) GetPost(ctx context.Context, id int64) (*models.Post, error) {
	var p models.Post
	err := s.pool.QueryRow(ctx,
		`SELECT id, title, content, timestamp, user_id FROM posts WHERE id = $1`, id,
	).Scan(&p.ID, &p.Title, &p.Content, &p.Timestamp, &p.UserID)
	if err != nil {
		return nil, notFoundOr(err)
	}
	return &p, nil
}

// UpdatePost overwrites title and content in place; the creation
// timestamp is deliberately left untouched.
func (s *PostgresStore) UpdatePost(ctx context.Context, id int64, title, content string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE posts SET title = $2, content = $3 WHERE id = $1`, id, title, content)
	if err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeletePost removes a post and its comments in a single transaction,
// comments first, so no orphan comment can survive.
func (s *PostgresStore) DeletePost(ctx context.Context, id int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("delete post: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM comments WHERE post_id = $1`, id); err != nil {
		return fmt.Errorf("delete post comments: %w", err)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return tx.Commit(ctx)
}

// ListPosts returns every post, newest first, with author and comments.
func (s *PostgresStore) ListPosts(ctx context.Context) ([]models.PostView, error) {
	return s.selectPosts(ctx,
		`SELECT p.id, p.title, p.content, p.timestamp, p.user_id, u.username
		 FROM posts p JOIN users u ON u.id = p.user_id
		 ORDER BY p.timestamp DESC`)
}

// SearchPosts returns posts whose title or content contains query as a
// substring. An empty query matches every post, as LIKE '%%' does.
func (s *PostgresStore) SearchPosts(ctx context.Context, query string) ([]models.PostView, error) {
	return s.selectPosts(ctx,
		`SELECT p.id, p.title, p.content, p.timestamp, p.user_id, u.username
		 FROM posts p JOIN users u ON u.id = p.user_id
		 WHERE p.title LIKE '%' || $1 || '%' OR p.content LIKE '%' || $1 || '%'
		 ORDER BY p.timestamp DESC`, query)
}

func (s *PostgresStore) selectPosts(ctx context.Context, sql string, args ...any) ([]models.PostView, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("select posts: %w", err)
	}
	defer rows.Close()

	var posts []models.PostView
	var ids []int64
	for rows.Next() {
		var p models.PostView
		if err := rows.Scan(&p.ID, &p.Title, &p.Content, &p.Timestamp, &p.UserID, &p.Author); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, p)
		ids = append(ids, p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("select posts: %w", err)
	}
	if len(posts) == 0 {
		return posts, nil
	}

	comments, err := s.commentsByPost(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range posts {
		posts[i].Comments = comments[posts[i].ID]
	}
	return posts, nil
}

func (s *PostgresStore) commentsByPost(ctx context.Context, postIDs []int64) (map[int64][]models.CommentView, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT c.id, c.content, c.timestamp, c.user_id, c.post_id, u.username
		 FROM comments c JOIN users u ON u.id = c.user_id
		 WHERE c.post_id = ANY($1)
		 ORDER BY c.timestamp`, postIDs)
	if err != nil {
		return nil, fmt.Errorf("select comments: %w", err)
	}
	defer rows.Close()

	byPost := make(map[int64][]models.CommentView)
	for rows.Next() {
		var c models.CommentView
		if err := rows.Scan(&c.ID, &c.Content, &c.Timestamp, &c.UserID, &c.PostID, &c.Author); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		byPost[c.PostID] = append(byPost[c.PostID], c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("select comments: %w", err)
	}
	return byPost, nil
}

// ── Comments ─────────────────────────────────────────────────────────

func (s *PostgresStore) CreateComment(ctx context.Context, postID, userID int64, content string) (*models.Comment, error) {
	var c models.Comment
	err := s.pool.QueryRow(ctx,
		`INSERT INTO comments (content, user_id, post_id)
		 VALUES ($1, $2, $3)
		 RETURNING id, content, timestamp, user_id, post_id`,
		content, userID, postID,
	).Scan(&c.ID, &c.Content, &c.Timestamp, &c.UserID, &c.PostID)
	if err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}
	return &c, nil
}

func notFoundOr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
