package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gunhee098/my-next-project-sub000/service"
)

type postLikeRequest struct {
	PostID int64 `json:"postId"`
}

type commentLikeRequest struct {
	CommentID int64 `json:"commentId"`
}

// TogglePostLike 路由: POST /likes
func (h *Handler) TogglePostLike(c *gin.Context, id service.Identity) {
	var req postLikeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if req.PostID <= 0 {
		badRequest(c, "postId is required")
		return
	}
	res, err := h.Likes.TogglePostLike(c.Request.Context(), id.UserID, req.PostID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ToggleCommentLike 路由: POST /comments/likes；点赞返回 201，取消返回 200
func (h *Handler) ToggleCommentLike(c *gin.Context, id service.Identity) {
	var req commentLikeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if req.CommentID <= 0 {
		badRequest(c, "commentId is required")
		return
	}
	res, err := h.Likes.ToggleCommentLike(c.Request.Context(), id.UserID, req.CommentID)
	if err != nil {
		fail(c, err)
		return
	}
	status := http.StatusOK
	if res.Liked {
		status = http.StatusCreated
	}
	c.JSON(status, res)
}

// LikeStatus 路由: GET /likes/status?postId=&userId=
// userId 只能是调用者本人
func (h *Handler) LikeStatus(c *gin.Context, id service.Identity) {
	postID, ok := queryID(c, "postId")
	if !ok {
		return
	}
	userID, ok := queryID(c, "userId")
	if !ok {
		return
	}
	if userID != 0 && userID != id.UserID {
		fail(c, service.ErrForbidden)
		return
	}
	liked, count, err := h.Likes.PostLikeStatus(c.Request.Context(), id.UserID, postID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"isLiked": liked, "count": count})
}
