package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gunhee098/my-next-project-sub000/models"
)

// ImageReleaser 帖子不再引用某张图片时通知它
type ImageReleaser interface {
	Release(ctx context.Context, imageURL string)
}

type PostService struct {
	db     *gorm.DB
	images ImageReleaser
}

func NewPostService(db *gorm.DB, images ImageReleaser) *PostService {
	return &PostService{db: db, images: images}
}

type PostInput struct {
	Title    string
	Content  string
	ImageURL *string // nil 表示更新时不改图片
}

type ListOptions struct {
	Search    string
	Ascending bool
}

func (in *PostInput) normalize() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)
	if in.Title == "" || in.Content == "" {
		return fmt.Errorf("%w: title and content are required", ErrInvalidInput)
	}
	if in.ImageURL != nil {
		trimmed := strings.TrimSpace(*in.ImageURL)
		in.ImageURL = &trimmed
	}
	return nil
}

func (s *PostService) Create(ctx context.Context, userID int64, in PostInput) (*models.Post, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	post := &models.Post{UserID: userID, Title: in.Title, Content: in.Content}
	if in.ImageURL != nil {
		post.ImageURL = *in.ImageURL
	}
	if err := s.db.WithContext(ctx).Create(post).Error; err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	return post, nil
}

// postViewQuery 联表补全作者昵称，计数都由行数推出
func postViewQuery(db *gorm.DB, viewerID int64) *gorm.DB {
	return db.Table("posts").
		Select(`posts.id, posts.user_id, users.name AS author_name, posts.title, posts.content, posts.image_url,
			posts.created_at, posts.updated_at,
			(SELECT COUNT(*) FROM likes WHERE likes.post_id = posts.id) AS like_count,
			(SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id) AS comment_count,
			(SELECT COUNT(*) FROM likes WHERE likes.post_id = posts.id AND likes.user_id = ?) AS viewer_likes`, viewerID).
		Joins("JOIN users ON users.id = posts.user_id")
}

// List viewerID 为 0 表示匿名
func (s *PostService) List(ctx context.Context, viewerID int64, opts ListOptions) ([]models.PostView, error) {
	q := postViewQuery(s.db.WithContext(ctx), viewerID)
	if keyword := strings.ToLower(strings.TrimSpace(opts.Search)); keyword != "" {
		like := "%" + escapeLike(keyword) + "%"
		q = q.Where("LOWER(posts.title) LIKE ? ESCAPE '!' OR LOWER(posts.content) LIKE ? ESCAPE '!'", like, like)
	}
	if opts.Ascending {
		q = q.Order("posts.created_at ASC").Order("posts.id ASC")
	} else {
		q = q.Order("posts.created_at DESC").Order("posts.id DESC")
	}

	views := make([]models.PostView, 0)
	if err := q.Scan(&views).Error; err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	for i := range views {
		views[i].Liked = views[i].ViewerLikes > 0
	}
	return views, nil
}

func (s *PostService) Get(ctx context.Context, viewerID, postID int64) (*models.PostView, error) {
	var views []models.PostView
	err := postViewQuery(s.db.WithContext(ctx), viewerID).
		Where("posts.id = ?", postID).
		Limit(1).
		Scan(&views).Error
	if err != nil {
		return nil, fmt.Errorf("get post %d: %w", postID, err)
	}
	if len(views) == 0 {
		return nil, ErrPostNotFound
	}
	view := &views[0]
	view.Liked = view.ViewerLikes > 0
	return view, nil
}

// Update 仅作者本人可改
func (s *PostService) Update(ctx context.Context, userID, postID int64, in PostInput) (*models.Post, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}

	var post models.Post
	var replacedImage string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := loadOwned(tx, &post, postID, userID, ErrPostNotFound); err != nil {
			return err
		}
		updates := map[string]interface{}{"title": in.Title, "content": in.Content}
		oldImage := post.ImageURL
		if in.ImageURL != nil && *in.ImageURL != oldImage {
			updates["image_url"] = *in.ImageURL
		}
		if err := tx.Model(&post).Updates(updates).Error; err != nil {
			return err
		}
		if _, changed := updates["image_url"]; changed {
			orphan, err := orphanedImage(tx, oldImage)
			if err != nil {
				return err
			}
			replacedImage = orphan
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if replacedImage != "" && s.images != nil {
		s.images.Release(ctx, replacedImage)
	}
	return &post, nil
}

// Delete 在一个事务里连带删除点赞、评论和评论点赞
func (s *PostService) Delete(ctx context.Context, userID, postID int64) error {
	var post models.Post
	var releasedImage string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := loadOwned(tx, &post, postID, userID, ErrPostNotFound); err != nil {
			return err
		}
		commentIDs := tx.Model(&models.Comment{}).Select("id").Where("post_id = ?", postID)
		if err := tx.Where("comment_id IN (?)", commentIDs).Delete(&models.CommentLike{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", postID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", postID).Delete(&models.Like{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&post).Error; err != nil {
			return err
		}
		orphan, err := orphanedImage(tx, post.ImageURL)
		releasedImage = orphan
		return err
	})
	if err != nil {
		return err
	}

	if releasedImage != "" && s.images != nil {
		s.images.Release(ctx, releasedImage)
	}
	return nil
}

// orphanedImage 返回不再被任何帖子引用的图片地址；仍有帖子引用时返回空串。
// 调用前当前帖子已经不再指向它
func orphanedImage(tx *gorm.DB, imageURL string) (string, error) {
	if imageURL == "" {
		return "", nil
	}
	var refs int64
	if err := tx.Model(&models.Post{}).Where("image_url = ?", imageURL).Count(&refs).Error; err != nil {
		return "", fmt.Errorf("count image refs: %w", err)
	}
	if refs > 0 {
		return "", nil
	}
	return imageURL, nil
}

// loadOwned 加锁读出实体并校验归属：不存在返回 notFound，非作者返回 ErrForbidden
func loadOwned(tx *gorm.DB, dest interface{ OwnerID() int64 }, id, userID int64, notFound error) error {
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(dest, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound
		}
		return fmt.Errorf("load %d: %w", id, err)
	}
	if dest.OwnerID() != userID {
		return ErrForbidden
	}
	return nil
}

func escapeLike(s string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(s)
}
