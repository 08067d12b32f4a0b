// cleanup 清空开发环境：数据表、图片桶、Redis 里的注销/限流键、清理队列
package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/go-redis/redis/v8"
	"github.com/minio/minio-go/v7"
	"gorm.io/gorm"

	"github.com/gunhee098/my-next-project-sub000/config"
	"github.com/gunhee098/my-next-project-sub000/models"
)

func main() {
	yes := flag.Bool("yes", false, "confirm wiping all data")
	flag.Parse()
	if !*yes {
		log.Fatal("refusing to run without -yes")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	ctx := context.Background()
	fmt.Println("🚀 开始清理所有数据...")

	// 1. 清空数据表
	db, err := config.InitDB(cfg.Database)
	if err != nil {
		log.Fatal(err)
	}
	defer config.CloseDB(db)
	wipeTables(db)

	// 2. 清空图片桶
	if cfg.MinIO.Endpoint != "" {
		client, err := config.InitMinIO(ctx, cfg.MinIO)
		if err != nil {
			log.Printf("⚠️ MinIO 不可用: %v", err)
		} else {
			wipeBucket(ctx, client, cfg.MinIO.Bucket)
		}
	}

	// 3. 清掉 Redis 里本服务的键
	rdb, err := config.InitRedis(ctx, cfg.Redis)
	if err != nil {
		log.Printf("⚠️ Redis 不可用: %v", err)
	} else if rdb != nil {
		defer rdb.Close()
		for _, pattern := range []string{"auth:revoked:*", "ratelimit:*"} {
			wipeKeys(ctx, rdb, pattern)
		}
	}

	// 4. 清空队列
	conn, ch, err := config.InitRabbitMQ(cfg.MQ)
	if err != nil {
		log.Printf("⚠️ RabbitMQ 不可用: %v", err)
	} else if conn != nil {
		defer conn.Close()
		defer ch.Close()
		n, err := ch.QueuePurge(config.ImageCleanupQueue, false)
		if err != nil {
			log.Printf("⚠️ 清空队列失败: %v", err)
		} else {
			fmt.Printf("✅ 队列已清空 (%d 条)\n", n)
		}
	}

	fmt.Println("\n🎉 清理完成！")
}

func wipeTables(db *gorm.DB) {
	for _, table := range models.Tables {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			log.Printf("⚠️ 清理表 %s 失败: %v", table, err)
		} else {
			fmt.Printf("✅ 表 %s 已清空\n", table)
		}
	}
}

func wipeBucket(ctx context.Context, client *minio.Client, bucket string) {
	objectsCh := make(chan minio.ObjectInfo)
	go func() {
		defer close(objectsCh)
		for object := range client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: "images/", Recursive: true}) {
			if object.Err != nil {
				log.Println("⚠️ 列举文件出错:", object.Err)
				continue
			}
			objectsCh <- object
		}
	}()

	for err := range client.RemoveObjects(ctx, bucket, objectsCh, minio.RemoveObjectsOptions{}) {
		log.Println("⚠️ 删除文件出错:", err.Err)
	}
	fmt.Println("✅ 图片桶已清空")
}

func wipeKeys(ctx context.Context, rdb *redis.Client, pattern string) {
	var removed int
	iter := rdb.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := rdb.Del(ctx, iter.Val()).Err(); err == nil {
			removed++
		}
	}
	if err := iter.Err(); err != nil {
		log.Printf("⚠️ 扫描 %s 失败: %v", pattern, err)
		return
	}
	fmt.Printf("✅ Redis %s 已清理 (%d 个键)\n", pattern, removed)
}
