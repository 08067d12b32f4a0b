package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gunhee098/my-next-project-sub000/handlers"
	"github.com/gunhee098/my-next-project-sub000/service"
)

// InitRouter authLimiter 可以为 nil
func InitRouter(h *handlers.Handler, authLimiter service.RateLimiter) *gin.Engine {
	r := gin.Default()

	// 跨域中间件必须放在所有路由之前
	r.Use(handlers.CORS(), handlers.SecureHeaders())

	// 设置上传限制
	r.MaxMultipartMemory = 8 << 20

	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	// --- 路由注册 ---
	// 账号
	r.POST("/auth", handlers.RateLimit(authLimiter), h.Auth)
	r.GET("/auth/me", h.Authed(h.Me))
	r.POST("/auth/logout", h.Authed(h.Logout))

	// 帖子
	r.GET("/posts", h.Authed(h.ListPosts))
	r.POST("/posts", h.Authed(h.CreatePost))
	r.GET("/posts/:id", h.MaybeAuthed(h.GetPost))
	r.PUT("/posts/:id", h.Authed(h.UpdatePost))
	r.DELETE("/posts/:id", h.Authed(h.DeletePost))

	// 评论
	r.GET("/comments", h.Authed(h.ListComments))
	r.POST("/comments", h.Authed(h.CreateComment))
	r.PUT("/comments/:id", h.Authed(h.UpdateComment))
	r.DELETE("/comments/:id", h.Authed(h.DeleteComment))

	// 点赞
	r.POST("/likes", h.Authed(h.TogglePostLike))
	r.GET("/likes/status", h.Authed(h.LikeStatus))
	r.POST("/comments/likes", h.Authed(h.ToggleCommentLike))

	// 图片
	r.POST("/upload", h.UploadImage)
	r.GET("/media/*filepath", h.ProxyMedia)

	return r
}
