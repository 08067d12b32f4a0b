package config

import (
	"fmt"

	"github.com/streadway/amqp"
)

// ImageCleanupQueue 删除帖子或替换配图后，待删除的对象名投递到这里
const ImageCleanupQueue = "image_cleanup_queue"

// InitRabbitMQ 返回 nil 连接表示未配置 MQ
func InitRabbitMQ(cfg MQConfig) (*amqp.Connection, *amqp.Channel, error) {
	if cfg.URL == "" {
		return nil, nil, nil
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("rabbitmq dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("rabbitmq channel: %w", err)
	}

	if _, err := ch.QueueDeclare(ImageCleanupQueue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("declare %s: %w", ImageCleanupQueue, err)
	}
	return conn, ch, nil
}
