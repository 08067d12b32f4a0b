package models

import "time"

// Post 对应数据库的 posts 表，UserID 创建后不可修改
type Post struct {
	ID        int64     `json:"id" gorm:"primaryKey"`
	UserID    int64     `json:"userId" gorm:"not null;index"`
	Title     string    `json:"title" gorm:"size:255;not null"`
	Content   string    `json:"content" gorm:"type:text;not null"`
	ImageURL  string    `json:"imageUrl" gorm:"size:512"`
	CreatedAt time.Time `json:"createdAt" gorm:"index"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Post) TableName() string {
	return "posts"
}

// PostView 列表和详情返回的聚合结构，带作者昵称和计数
type PostView struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"userId"`
	AuthorName   string    `json:"authorName"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	ImageURL     string    `json:"imageUrl"`
	LikeCount    int64     `json:"likeCount"`
	CommentCount int64     `json:"commentCount"`
	ViewerLikes  int64     `json:"-"`
	Liked        bool      `json:"liked"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// OwnerID 返回作者 ID，用于修改和删除前的归属校验
func (p *Post) OwnerID() int64 { return p.UserID }
