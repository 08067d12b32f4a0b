package service

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gunhee098/my-next-project-sub000/models"
)

type CommentService struct {
	db *gorm.DB
}

func NewCommentService(db *gorm.DB) *CommentService {
	return &CommentService{db: db}
}

func normalizeContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", fmt.Errorf("%w: content is required", ErrInvalidInput)
	}
	return content, nil
}

// Create 父帖子必须存在
func (s *CommentService) Create(ctx context.Context, userID, postID int64, content string) (*models.Comment, error) {
	if postID <= 0 {
		return nil, fmt.Errorf("%w: postId is required", ErrInvalidInput)
	}
	content, err := normalizeContent(content)
	if err != nil {
		return nil, err
	}

	comment := &models.Comment{UserID: userID, PostID: postID, Content: content}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 锁住帖子行，和删帖互斥，避免评论挂在已删除的帖子上
		if err := lockRow(tx, "posts", postID, ErrPostNotFound); err != nil {
			return err
		}
		return tx.Create(comment).Error
	})
	if err != nil {
		return nil, err
	}
	return comment, nil
}

// ListByPost 按时间正序返回某帖子的评论，帖子不存在时返回 ErrPostNotFound
func (s *CommentService) ListByPost(ctx context.Context, viewerID, postID int64) ([]models.CommentView, error) {
	if postID <= 0 {
		return nil, fmt.Errorf("%w: postId is required", ErrInvalidInput)
	}
	db := s.db.WithContext(ctx)
	if err := requireRow(db, "posts", postID, ErrPostNotFound); err != nil {
		return nil, err
	}

	views := make([]models.CommentView, 0)
	err := db.Table("comments").
		Select(`comments.id, comments.user_id, comments.post_id, users.name AS author_name, comments.content,
			comments.created_at, comments.updated_at,
			(SELECT COUNT(*) FROM comment_likes WHERE comment_likes.comment_id = comments.id) AS like_count,
			(SELECT COUNT(*) FROM comment_likes WHERE comment_likes.comment_id = comments.id AND comment_likes.user_id = ?) AS viewer_likes`, viewerID).
		Joins("JOIN users ON users.id = comments.user_id").
		Where("comments.post_id = ?", postID).
		Order("comments.created_at ASC").Order("comments.id ASC").
		Scan(&views).Error
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	for i := range views {
		views[i].Liked = views[i].ViewerLikes > 0
	}
	return views, nil
}

func (s *CommentService) Update(ctx context.Context, userID, commentID int64, content string) (*models.Comment, error) {
	content, err := normalizeContent(content)
	if err != nil {
		return nil, err
	}

	var comment models.Comment
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := loadOwned(tx, &comment, commentID, userID, ErrCommentNotFound); err != nil {
			return err
		}
		return tx.Model(&comment).Update("content", content).Error
	})
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

// Delete 连同评论上的点赞一起删除
func (s *CommentService) Delete(ctx context.Context, userID, commentID int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var comment models.Comment
		if err := loadOwned(tx, &comment, commentID, userID, ErrCommentNotFound); err != nil {
			return err
		}
		if err := tx.Where("comment_id = ?", commentID).Delete(&models.CommentLike{}).Error; err != nil {
			return err
		}
		return tx.Delete(&comment).Error
	})
}

// requireRow 检查目标行是否存在
func requireRow(tx *gorm.DB, table string, id int64, notFound error) error {
	var n int64
	if err := tx.Table(table).Where("id = ?", id).Count(&n).Error; err != nil {
		return fmt.Errorf("check %s %d: %w", table, id, err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// lockRow 在事务内对目标行加行锁 (SELECT ... FOR UPDATE)，行不存在返回 notFound。
// SQLite 没有行锁，由 _txlock=immediate 让写事务整体串行
func lockRow(tx *gorm.DB, table string, id int64, notFound error) error {
	var ids []int64
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Table(table).
		Where("id = ?", id).
		Pluck("id", &ids).Error
	if err != nil {
		return fmt.Errorf("lock %s %d: %w", table, id, err)
	}
	if len(ids) == 0 {
		return notFound
	}
	return nil
}
