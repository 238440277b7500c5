package models

import "time"

// Post is a titled text submission owned by one user.
type Post struct {
	ID        int64
	Title     string
	Content   string
	Timestamp time.Time
	UserID    int64
}

// Comment is a text reply attached to one post.
type Comment struct {
	ID        int64
	Content   string
	Timestamp time.Time
	UserID    int64
	PostID    int64
}

// PostView is a post together with its author name and comments,
// the shape the templates consume.
type PostView struct {
	Post
	Author   string
	Comments []CommentView
}

// CommentView pairs a comment with its author name.
type CommentView struct {
	Comment
	Author string
}
