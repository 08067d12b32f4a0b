package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gunhee098/my-next-project-sub000/service"
)

type commentRequest struct {
	PostID  int64  `json:"postId"`
	Content string `json:"content"`
}

// ListComments 路由: GET /comments?postId=
func (h *Handler) ListComments(c *gin.Context, id service.Identity) {
	postID, ok := queryID(c, "postId")
	if !ok {
		return
	}
	comments, err := h.Comments.ListByPost(c.Request.Context(), id.UserID, postID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, comments)
}

// CreateComment 路由: POST /comments
func (h *Handler) CreateComment(c *gin.Context, id service.Identity) {
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	comment, err := h.Comments.Create(c.Request.Context(), id.UserID, req.PostID, req.Content)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

// UpdateComment 路由: PUT /comments/:id
func (h *Handler) UpdateComment(c *gin.Context, id service.Identity) {
	commentID, ok := pathID(c)
	if !ok {
		return
	}
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	comment, err := h.Comments.Update(c.Request.Context(), id.UserID, commentID, req.Content)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, comment)
}

// DeleteComment 路由: DELETE /comments/:id
func (h *Handler) DeleteComment(c *gin.Context, id service.Identity) {
	commentID, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.Comments.Delete(c.Request.Context(), id.UserID, commentID); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "comment deleted", "id": commentID})
}
