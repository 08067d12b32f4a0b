package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gunhee098/my-next-project-sub000/models"
	"github.com/gunhee098/my-next-project-sub000/service"
)

type authRequest struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserSummary 对外暴露的用户信息
type UserSummary struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func summarize(u *models.User) UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Email: u.Email}
}

// Auth 注册和登录共用一个入口，按 type 分发
// 路由: POST /auth
func (h *Handler) Auth(c *gin.Context) {
	var req authRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	switch req.Type {
	case "register":
		h.register(c, req)
	case "login":
		h.login(c, req)
	default:
		badRequest(c, `type must be "register" or "login"`)
	}
}

func (h *Handler) register(c *gin.Context, req authRequest) {
	user, err := h.Users.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "registered",
		"user":    summarize(user),
	})
}

func (h *Handler) login(c *gin.Context, req authRequest) {
	res, err := h.Users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":     res.Token,
		"expiresAt": res.ExpiresAt,
		"user":      summarize(res.User),
	})
}

// Me 路由: GET /auth/me
func (h *Handler) Me(c *gin.Context, id service.Identity) {
	user, err := h.Users.Get(c.Request.Context(), id.UserID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, summarize(user))
}

// Logout 路由: POST /auth/logout
func (h *Handler) Logout(c *gin.Context, id service.Identity) {
	if err := h.Tokens.Revoke(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}
