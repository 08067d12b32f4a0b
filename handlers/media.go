package handlers

import (
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ProxyMedia 中转对象存储里的图片，浏览器不直接访问 MinIO
// 路由: GET /media/*filepath
func (h *Handler) ProxyMedia(c *gin.Context) {
	object, contentType, err := h.Uploads.Open(c.Request.Context(), c.Param("filepath"))
	if err != nil {
		fail(c, err)
		return
	}
	defer object.Close()

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Type", contentType)
	c.Header("Cache-Control", "public, max-age=86400")
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, object); err != nil {
		log.Printf("⚠️ 图片流中断 %s: %v", c.Param("filepath"), err)
	}
}
