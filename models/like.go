package models

import "time"

// Like 帖子点赞，(user_id, post_id) 唯一；存在即“已赞”
type Like struct {
	ID        int64     `json:"id" gorm:"primaryKey"`
	UserID    int64     `json:"userId" gorm:"not null;uniqueIndex:idx_likes_user_post"`
	PostID    int64     `json:"postId" gorm:"not null;uniqueIndex:idx_likes_user_post;index"`
	CreatedAt time.Time `json:"createdAt"`
}

func (Like) TableName() string { return "likes" }

// CommentLike 评论点赞，(user_id, comment_id) 唯一
type CommentLike struct {
	ID        int64     `json:"id" gorm:"primaryKey"`
	UserID    int64     `json:"userId" gorm:"not null;uniqueIndex:idx_comment_likes_user_comment"`
	CommentID int64     `json:"commentId" gorm:"not null;uniqueIndex:idx_comment_likes_user_comment;index"`
	CreatedAt time.Time `json:"createdAt"`
}

func (CommentLike) TableName() string { return "comment_likes" }
