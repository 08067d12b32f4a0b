package models

import "gorm.io/gorm"

// Tables 按依赖顺序排列，cmd/cleanup 也用它
var Tables = []string{"comment_likes", "likes", "comments", "posts", "users"}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&User{}, &Post{}, &Comment{}, &Like{}, &CommentLike{})
}
