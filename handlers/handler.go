package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gunhee098/my-next-project-sub000/service"
)

// Handler 持有所有业务服务，由 main 组装后注入
type Handler struct {
	Users    *service.UserService
	Posts    *service.PostService
	Comments *service.CommentService
	Likes    *service.LikeService
	Uploads  *service.Uploader
	Tokens   *service.TokenManager
}

// AuthedFunc 需要身份的处理函数，身份作为参数显式传入
type AuthedFunc func(c *gin.Context, id service.Identity)

// Authed 校验 Bearer token，失败直接 401
func (h *Handler) Authed(fn AuthedFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := h.Tokens.Verify(c.Request.Context(), bearerToken(c))
		if err != nil {
			fail(c, err)
			return
		}
		fn(c, id)
	}
}

// MaybeAuthed 没带 token 时以匿名身份（UserID 为 0）继续；带了但无效仍然 401
func (h *Handler) MaybeAuthed(fn AuthedFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			fn(c, service.Identity{})
			return
		}
		id, err := h.Tokens.Verify(c.Request.Context(), token)
		if err != nil {
			fail(c, err)
			return
		}
		fn(c, id)
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

// fail 把业务错误映射成状态码，统一返回 {"message": ...}
func fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrUnauthenticated), errors.Is(err, service.ErrInvalidPassword):
		status = http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrPostNotFound),
		errors.Is(err, service.ErrCommentNotFound),
		errors.Is(err, service.ErrImageNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrEmailExists), errors.Is(err, service.ErrAlreadyLiked):
		status = http.StatusConflict
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		log.Printf("❌ %s %s: %v", c.Request.Method, c.FullPath(), err)
		message = "internal server error"
	}
	c.AbortWithStatusJSON(status, gin.H{"message": message})
}

func badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": message})
}

// pathID 解析 /:id，非法时已写好 400
func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid id")
		return 0, false
	}
	return id, true
}

// queryID 解析可选的整型查询参数；缺省返回 0
func queryID(c *gin.Context, key string) (int64, bool) {
	raw := c.Query(key)
	if raw == "" {
		return 0, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid "+key)
		return 0, false
	}
	return id, true
}
