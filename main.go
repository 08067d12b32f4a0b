package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gunhee098/my-next-project-sub000/config"
	"github.com/gunhee098/my-next-project-sub000/handlers"
	"github.com/gunhee098/my-next-project-sub000/models"
	"github.com/gunhee098/my-next-project-sub000/routes"
	"github.com/gunhee098/my-next-project-sub000/service"
)

func main() {
	if err := run(); err != nil {
		log.Fatal("❌ ", err)
	}
}

// run 返回前执行所有 defer，各连接都能正常关闭
func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("配置加载失败: %w", err)
	}

	// 1. 初始化基础设施
	db, err := config.InitDB(cfg.Database)
	if err != nil {
		return fmt.Errorf("数据库连接失败: %w", err)
	}
	defer config.CloseDB(db)
	if err := models.AutoMigrate(db); err != nil {
		return fmt.Errorf("建表失败: %w", err)
	}
	log.Printf("✅ 数据库连接成功 (%s)", cfg.Database.Driver)

	rdb, err := config.InitRedis(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("Redis 连接失败: %w", err)
	}
	var revocations service.RevocationStore = service.NopRevocations{}
	var authLimiter service.RateLimiter
	if rdb != nil {
		defer rdb.Close()
		revocations = service.NewRedisRevocations(rdb)
		authLimiter = service.NewRedisRateLimiter(rdb, "auth", cfg.Server.AuthRateLimit, time.Minute)
		log.Println("✅ Redis 连接成功")
	} else {
		log.Println("⚠️ 未配置 REDIS_ADDR，注销与限流不可用")
	}

	minioClient, err := config.InitMinIO(ctx, cfg.MinIO)
	if err != nil {
		return fmt.Errorf("MinIO 连接失败: %w", err)
	}
	storage := service.NewMinioStorage(minioClient, cfg.MinIO.Bucket)
	log.Printf("✅ MinIO 连接成功 (存储节点: %s)", cfg.MinIO.Endpoint)

	mqConn, mqChannel, err := config.InitRabbitMQ(cfg.MQ)
	if err != nil {
		return fmt.Errorf("RabbitMQ 连接失败: %w", err)
	}
	var cleaner service.ImageCleaner
	if mqConn != nil {
		defer mqConn.Close()
		defer mqChannel.Close()
		// 发布用 mqChannel，Worker 自己开消费通道
		cleaner = service.NewMQCleaner(mqChannel, config.ImageCleanupQueue)
		// 2. 启动后台 Worker
		if err := service.StartImageCleanupWorker(ctx, mqConn, config.ImageCleanupQueue, storage); err != nil {
			return fmt.Errorf("清理 Worker 启动失败: %w", err)
		}
		log.Println("✅ RabbitMQ 连接成功")
	} else {
		cleaner = service.NewInlineCleaner(storage, cfg.Server.UploadTimeout)
		log.Println("⚠️ 未配置 AMQP_URL，图片清理同步执行")
	}

	tokens, err := service.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, revocations)
	if err != nil {
		return err
	}
	uploader := service.NewUploader(storage, cleaner, cfg.Server.PublicBaseURL, cfg.Server.MaxUploadBytes, cfg.Server.UploadTimeout)

	h := &handlers.Handler{
		Users:    service.NewUserService(db, tokens),
		Posts:    service.NewPostService(db, uploader),
		Comments: service.NewCommentService(db),
		Likes:    service.NewLikeService(db),
		Uploads:  uploader,
		Tokens:   tokens,
	}

	// 3. 启动 Web 服务
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           routes.InitRouter(h, authLimiter),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.UploadTimeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("🚀 服务启动成功: %s", cfg.Server.Addr)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("服务异常退出: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Println("正在关闭服务...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Println("⚠️ 关闭超时: ", err)
	}
	return nil
}
