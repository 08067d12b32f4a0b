package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// UploadImage 接收 multipart 的 file 字段，转存对象存储后返回图片地址
// 路由: POST /upload
func (h *Handler) UploadImage(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		badRequest(c, "file is required")
		return
	}
	defer file.Close()

	imageURL, err := h.Uploads.Upload(c.Request.Context(), header.Filename, file, header.Size)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"imageUrl": imageURL})
}
