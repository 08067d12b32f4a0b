package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/streadway/amqp"
)

type CleanupMessage struct {
	ObjectName string    `json:"object_name"`
	QueuedAt   time.Time `json:"queued_at"`
}

// ImageCleaner 接收不再被引用的图片对象名
type ImageCleaner interface {
	Enqueue(ctx context.Context, objectName string) error
}

// MQCleaner 把清理任务投递到 RabbitMQ
type MQCleaner struct {
	ch    *amqp.Channel
	queue string
}

func NewMQCleaner(ch *amqp.Channel, queue string) *MQCleaner {
	return &MQCleaner{ch: ch, queue: queue}
}

func (c *MQCleaner) Enqueue(_ context.Context, objectName string) error {
	body, err := json.Marshal(CleanupMessage{ObjectName: objectName, QueuedAt: time.Now()})
	if err != nil {
		return err
	}
	return c.ch.Publish("", c.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}

// InlineCleaner 没有 MQ 时直接删除
type InlineCleaner struct {
	storage Storage
	timeout time.Duration
}

func NewInlineCleaner(storage Storage, timeout time.Duration) *InlineCleaner {
	return &InlineCleaner{storage: storage, timeout: timeout}
}

func (c *InlineCleaner) Enqueue(ctx context.Context, objectName string) error {
	// 请求可能已经结束，不跟随请求的取消
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()
	return c.storage.Remove(ctx, objectName)
}

// StartImageCleanupWorker 在独立通道上消费清理队列，一次只取一条；
// ctx 取消或通道关闭时退出
func StartImageCleanupWorker(ctx context.Context, conn *amqp.Connection, queue string, storage Storage) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open consume channel: %w", err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		ch.Close()
		return fmt.Errorf("set qos: %w", err)
	}
	msgs, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		ch.Close()
		return fmt.Errorf("consume %s: %w", queue, err)
	}

	go func() {
		defer ch.Close()
		log.Println("🧹 图片清理 Worker 已启动...")
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-msgs:
				if !ok {
					log.Println("⚠️ 清理队列通道已关闭")
					return
				}
				handleCleanupDelivery(ctx, storage, d)
			}
		}
	}()
	return nil
}

// handleCleanupDelivery 失败的消息重投一次，再失败就丢弃
func handleCleanupDelivery(ctx context.Context, storage Storage, d amqp.Delivery) {
	var msg CleanupMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil || msg.ObjectName == "" {
		log.Printf("❌ 无法解析清理消息: %s", string(d.Body))
		d.Reject(false)
		return
	}
	if err := removeObject(ctx, storage, msg.ObjectName); err != nil {
		if d.Redelivered {
			log.Printf("❌ 删除图片再次失败，放弃 %s: %v", msg.ObjectName, err)
			d.Reject(false)
			return
		}
		log.Printf("❌ 删除图片失败，稍后重试 %s: %v", msg.ObjectName, err)
		d.Nack(false, true)
		return
	}
	d.Ack(false)
	log.Printf("✅ 已删除图片: %s", msg.ObjectName)
}

func removeObject(ctx context.Context, storage Storage, objectName string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return storage.Remove(ctx, objectName)
}
