package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/titan/hive-person-service/internal/domain"
)

// 消息体统一放在单个 field 中（JSON 编码）
const bodyField = "body"

// StreamCommand 从命令流读出的一条消息
type StreamCommand struct {
	ID      string
	Command domain.CommandMessage
}

// PublishCommand 发布命令到命令流
func PublishCommand(ctx context.Context, client *redis.Client, stream string, cmd domain.CommandMessage) (string, error) {
	return publishJSON(ctx, client, stream, cmd)
}

// PublishResponse 发布响应到响应流
func PublishResponse(ctx context.Context, client *redis.Client, stream string, resp domain.ResponseMessage) (string, error) {
	return publishJSON(ctx, client, stream, resp)
}

func publishJSON(ctx context.Context, client *redis.Client, stream string, v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal stream message: %w", err)
	}
	id, err := client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{bodyField: string(raw)},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("failed to publish to stream %s: %w", stream, err)
	}
	return id, nil
}

// CreateConsumerGroup 创建消费者组（stream 不存在时一并创建），已存在则忽略
func CreateConsumerGroup(ctx context.Context, client *redis.Client, stream, group string) error {
	err := client.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	return nil
}

// ReadCommands 以消费者组身份从命令流读取一批命令
// 无消息时返回空切片；消息确认由调用方在处理完成后执行
func ReadCommands(ctx context.Context, client *redis.Client, stream, group, consumer string, count int64) ([]StreamCommand, error) {
	streams, err := client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{stream, ">"},
		Count:    count,
		Block:    time.Second * 5,
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read from stream %s: %w", stream, err)
	}

	var commands []StreamCommand
	for _, s := range streams {
		for _, msg := range s.Messages {
			body, ok := msg.Values[bodyField].(string)
			if !ok {
				return nil, fmt.Errorf("stream message %s has no %s field", msg.ID, bodyField)
			}
			var cmd domain.CommandMessage
			if err := json.Unmarshal([]byte(body), &cmd); err != nil {
				return nil, fmt.Errorf("failed to unmarshal command %s: %w", msg.ID, err)
			}
			commands = append(commands, StreamCommand{ID: msg.ID, Command: cmd})
		}
	}
	return commands, nil
}

// AckCommand 确认命令已处理（响应发布之后调用，保证 at-least-once）
func AckCommand(ctx context.Context, client *redis.Client, stream, group, messageID string) error {
	return client.XAck(ctx, stream, group, messageID).Err()
}
