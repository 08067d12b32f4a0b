package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const mediaPathPrefix = "/media/"

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/bmp":  ".bmp",
}

// Uploader 把图片转存到对象存储，返回走 /media 代理的公网地址
type Uploader struct {
	storage       Storage
	cleaner       ImageCleaner
	publicBaseURL string
	maxBytes      int64
	timeout       time.Duration
	now           func() time.Time
}

func NewUploader(storage Storage, cleaner ImageCleaner, publicBaseURL string, maxBytes int64, timeout time.Duration) *Uploader {
	return &Uploader{
		storage:       storage,
		cleaner:       cleaner,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		maxBytes:      maxBytes,
		timeout:       timeout,
		now:           time.Now,
	}
}

// Upload 上传完成才返回 URL，引用它的帖子只能在这之后创建
func (u *Uploader) Upload(ctx context.Context, filename string, r io.Reader, size int64) (string, error) {
	if size <= 0 {
		return "", fmt.Errorf("%w: empty file", ErrInvalidInput)
	}
	if u.maxBytes > 0 && size > u.maxBytes {
		return "", fmt.Errorf("%w: file exceeds %d bytes", ErrInvalidInput, u.maxBytes)
	}

	// 嗅探前 512 字节判断真实类型，不信任客户端的 Content-Type
	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]
	contentType := http.DetectContentType(head)
	ext, ok := imageExtensions[contentType]
	if !ok {
		return "", fmt.Errorf("%w: %s is not a supported image type", ErrInvalidInput, contentType)
	}
	if orig := strings.ToLower(filepath.Ext(filename)); orig == ".jpeg" && ext == ".jpg" {
		ext = orig
	}

	objectName := fmt.Sprintf("images/%s/%s%s", u.now().UTC().Format("2006/01/02"), uuid.NewString(), ext)

	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()
	body := io.MultiReader(bytes.NewReader(head), r)
	if err := u.storage.Put(ctx, objectName, body, size, contentType); err != nil {
		return "", err
	}
	return u.publicBaseURL + mediaPathPrefix + objectName, nil
}

// Open 供 /media 代理读取对象
func (u *Uploader) Open(ctx context.Context, objectName string) (io.ReadCloser, string, error) {
	objectName = strings.TrimPrefix(objectName, "/")
	if objectName == "" || strings.Contains(objectName, "..") {
		return nil, "", ErrImageNotFound
	}
	return u.storage.Open(ctx, objectName)
}

// ObjectName 从本服务签发的图片 URL 中取出对象名；外链图片返回 false
func (u *Uploader) ObjectName(imageURL string) (string, bool) {
	prefix := u.publicBaseURL + mediaPathPrefix
	if !strings.HasPrefix(imageURL, prefix) {
		return "", false
	}
	name := strings.TrimPrefix(imageURL, prefix)
	if name == "" || strings.Contains(name, "..") {
		return "", false
	}
	return name, true
}

// Release 图片不再被引用时调用，交给清理队列处理，失败只记日志
func (u *Uploader) Release(ctx context.Context, imageURL string) {
	name, ok := u.ObjectName(imageURL)
	if !ok || u.cleaner == nil {
		return
	}
	if err := u.cleaner.Enqueue(ctx, name); err != nil {
		log.Printf("⚠️ 图片清理投递失败 %s: %v", name, err)
	}
}
