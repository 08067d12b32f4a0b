package models

import "time"

type Comment struct {
	ID        int64     `json:"id" gorm:"primaryKey"`
	UserID    int64     `json:"userId" gorm:"not null;index"`
	PostID    int64     `json:"postId" gorm:"not null;index"`
	Content   string    `json:"content" gorm:"type:text;not null"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Comment) TableName() string { return "comments" }

// CommentView 评论列表项，补全了作者信息和点赞数
type CommentView struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"userId"`
	PostID      int64     `json:"postId"`
	AuthorName  string    `json:"authorName"`
	Content     string    `json:"content"`
	LikeCount   int64     `json:"likeCount"`
	ViewerLikes int64     `json:"-"`
	Liked       bool      `json:"liked"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (c *Comment) OwnerID() int64 { return c.UserID }
