package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gunhee098/my-next-project-sub000/service"
)

type postRequest struct {
	Title    string  `json:"title"`
	Content  string  `json:"content"`
	ImageURL *string `json:"imageUrl"`
}

func (r postRequest) input() service.PostInput {
	return service.PostInput{Title: r.Title, Content: r.Content, ImageURL: r.ImageURL}
}

// ListPosts 路由: GET /posts?search=&orderBy=
func (h *Handler) ListPosts(c *gin.Context, id service.Identity) {
	opts := service.ListOptions{
		Search:    c.Query("search"),
		Ascending: isAscending(c.Query("orderBy")),
	}
	posts, err := h.Posts.List(c.Request.Context(), id.UserID, opts)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, posts)
}

func isAscending(orderBy string) bool {
	switch strings.ToLower(strings.TrimSpace(orderBy)) {
	case "asc", "oldest":
		return true
	}
	return false
}

// CreatePost 路由: POST /posts
func (h *Handler) CreatePost(c *gin.Context, id service.Identity) {
	var req postRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	post, err := h.Posts.Create(c.Request.Context(), id.UserID, req.input())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, post)
}

// GetPost 路由: GET /posts/:id，匿名可读
func (h *Handler) GetPost(c *gin.Context, id service.Identity) {
	postID, ok := pathID(c)
	if !ok {
		return
	}
	post, err := h.Posts.Get(c.Request.Context(), id.UserID, postID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

// UpdatePost 路由: PUT /posts/:id
func (h *Handler) UpdatePost(c *gin.Context, id service.Identity) {
	postID, ok := pathID(c)
	if !ok {
		return
	}
	var req postRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	post, err := h.Posts.Update(c.Request.Context(), id.UserID, postID, req.input())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

// DeletePost 路由: DELETE /posts/:id
func (h *Handler) DeletePost(c *gin.Context, id service.Identity) {
	postID, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.Posts.Delete(c.Request.Context(), id.UserID, postID); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "post deleted", "id": postID})
}
