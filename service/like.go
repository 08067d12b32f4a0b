package service

import (
	"context"
	"fmt"
	"log"

	"gorm.io/gorm"

	"github.com/gunhee098/my-next-project-sub000/models"
)

// LikeResult 切换后的状态和该目标当前的点赞行数
type LikeResult struct {
	Liked bool  `json:"liked"`
	Count int64 `json:"count"`
}

// likeTarget 描述一种可点赞的目标：帖子或评论
type likeTarget struct {
	parent   string // 目标所在表
	column   string // 点赞表里指向目标的列
	model    func() interface{}
	row      func(userID, targetID int64) interface{}
	lock     func(tx *gorm.DB, targetID int64) error
	notFound error
}

var (
	postTarget = likeTarget{
		parent:   "posts",
		column:   "post_id",
		model:    func() interface{} { return &models.Like{} },
		row:      func(u, t int64) interface{} { return &models.Like{UserID: u, PostID: t} },
		lock:     func(tx *gorm.DB, id int64) error { return lockRow(tx, "posts", id, ErrPostNotFound) },
		notFound: ErrPostNotFound,
	}
	commentTarget = likeTarget{
		parent:   "comments",
		column:   "comment_id",
		model:    func() interface{} { return &models.CommentLike{} },
		row:      func(u, t int64) interface{} { return &models.CommentLike{UserID: u, CommentID: t} },
		lock:     lockComment,
		notFound: ErrCommentNotFound,
	}
)

// lockComment 先锁父帖子再锁评论，和删帖的加锁顺序一致
func lockComment(tx *gorm.DB, commentID int64) error {
	var postIDs []int64
	if err := tx.Table("comments").Where("id = ?", commentID).Pluck("post_id", &postIDs).Error; err != nil {
		return fmt.Errorf("load comment %d: %w", commentID, err)
	}
	if len(postIDs) == 0 {
		return ErrCommentNotFound
	}
	if err := lockRow(tx, "posts", postIDs[0], ErrCommentNotFound); err != nil {
		return err
	}
	return lockRow(tx, "comments", commentID, ErrCommentNotFound)
}

// LikeService 帖子和评论点赞的唯一实现
type LikeService struct {
	db *gorm.DB
}

func NewLikeService(db *gorm.DB) *LikeService {
	return &LikeService{db: db}
}

func (s *LikeService) TogglePostLike(ctx context.Context, userID, postID int64) (LikeResult, error) {
	return s.toggle(ctx, postTarget, userID, postID)
}

func (s *LikeService) ToggleCommentLike(ctx context.Context, userID, commentID int64) (LikeResult, error) {
	return s.toggle(ctx, commentTarget, userID, commentID)
}

// PostLikeStatus 返回 userID 是否赞过 postID，以及总赞数
func (s *LikeService) PostLikeStatus(ctx context.Context, userID, postID int64) (bool, int64, error) {
	if postID <= 0 {
		return false, 0, fmt.Errorf("%w: postId is required", ErrInvalidInput)
	}
	db := s.db.WithContext(ctx)
	if err := requireRow(db, postTarget.parent, postID, ErrPostNotFound); err != nil {
		return false, 0, err
	}
	var mine int64
	err := db.Model(postTarget.model()).
		Where("user_id = ? AND post_id = ?", userID, postID).
		Count(&mine).Error
	if err != nil {
		return false, 0, fmt.Errorf("like status: %w", err)
	}
	count, err := countLikes(db, postTarget, postID)
	if err != nil {
		return false, 0, err
	}
	return mine > 0, count, nil
}

// toggleAttempts 锁冲突时整个事务最多执行的次数
const toggleAttempts = 2

// toggle 在一个事务内完成：锁住目标行 -> 先删；删到了就是取消，没删到就插入。
// 同一目标上的切换靠目标行锁串行。插入撞上唯一索引返回 ErrAlreadyLiked；
// 锁冲突重试一次，仍失败也按 ErrAlreadyLiked 处理
func (s *LikeService) toggle(ctx context.Context, t likeTarget, userID, targetID int64) (LikeResult, error) {
	if targetID <= 0 {
		return LikeResult{}, fmt.Errorf("%w: %s is required", ErrInvalidInput, t.column)
	}

	var err error
	for attempt := 1; attempt <= toggleAttempts; attempt++ {
		var result LikeResult
		result, err = s.toggleOnce(ctx, t, userID, targetID)
		if !isLockConflict(err) {
			return result, err
		}
		if ctx.Err() != nil {
			break
		}
	}
	log.Printf("⚠️ 点赞锁冲突 %s=%d user=%d: %v", t.column, targetID, userID, err)
	return LikeResult{}, ErrAlreadyLiked
}

func (s *LikeService) toggleOnce(ctx context.Context, t likeTarget, userID, targetID int64) (LikeResult, error) {
	var result LikeResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := t.lock(tx, targetID); err != nil {
			return err
		}

		res := tx.Where("user_id = ? AND "+t.column+" = ?", userID, targetID).Delete(t.model())
		if res.Error != nil {
			return fmt.Errorf("unlike: %w", res.Error)
		}
		if res.RowsAffected > 0 {
			result.Liked = false
		} else {
			if err := insertLike(tx, t, userID, targetID); err != nil {
				return err
			}
			result.Liked = true
		}

		count, err := countLikes(tx, t, targetID)
		if err != nil {
			return err
		}
		result.Count = count
		return nil
	})
	if err != nil {
		return LikeResult{}, err
	}
	return result, nil
}

func insertLike(tx *gorm.DB, t likeTarget, userID, targetID int64) error {
	if err := tx.Create(t.row(userID, targetID)).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyLiked
		}
		return fmt.Errorf("like: %w", err)
	}
	return nil
}

func countLikes(tx *gorm.DB, t likeTarget, targetID int64) (int64, error) {
	var n int64
	if err := tx.Model(t.model()).Where(t.column+" = ?", targetID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count likes: %w", err)
	}
	return n, nil
}
