package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/titan/hive-person-service/internal/domain"
	"github.com/titan/hive-person-service/internal/idgen"
)

// ErrWaitTimeout Gateway 在超时窗口内未等到 Worker 响应
var ErrWaitTimeout = errors.New("timed out waiting for worker response")

// Dispatcher Gateway 侧的命令发布与响应关联
// 每次 Dispatch：登记 waiter → 发布命令 → 挂起等待对应 cmd_id 的响应
// 响应监听循环对所有并发调用共享；超时后到达的响应找不到 waiter，直接丢弃
type Dispatcher struct {
	client         *redis.Client
	commandStream  string
	responseStream string
	timeout        time.Duration
	logger         *zap.Logger

	mu      sync.Mutex
	waiters map[string]chan domain.ResponseMessage
}

// NewDispatcher 创建命令分发器
func NewDispatcher(client *redis.Client, commandStream, responseStream string, timeout time.Duration, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		client:         client,
		commandStream:  commandStream,
		responseStream: responseStream,
		timeout:        timeout,
		logger:         logger,
		waiters:        make(map[string]chan domain.ResponseMessage),
	}
}

// Dispatch 发布一条命令并阻塞等待关联响应
// 超时返回 ErrWaitTimeout；调用方上下文取消返回 ctx.Err()
func (d *Dispatcher) Dispatch(ctx context.Context, operation string, args any) (domain.ResponseMessage, error) {
	rawArgs, err := json.Marshal(args)
	if err != nil {
		return domain.ResponseMessage{}, fmt.Errorf("failed to marshal command args: %w", err)
	}

	cmdID := idgen.New()
	cmd := domain.CommandMessage{CmdID: cmdID, Operation: operation, Args: rawArgs}

	// 先登记 waiter 再发布，避免响应早于登记到达
	// 缓冲为 1：waiter 超时离开后，迟到投递不会阻塞监听循环
	ch := make(chan domain.ResponseMessage, 1)
	d.mu.Lock()
	d.waiters[cmdID] = ch
	d.mu.Unlock()
	defer d.removeWaiter(cmdID)

	if _, err := PublishCommand(ctx, d.client, d.commandStream, cmd); err != nil {
		return domain.ResponseMessage{}, fmt.Errorf("failed to publish command: %w", err)
	}

	d.logger.Debug("Command dispatched",
		zap.String("cmd_id", cmdID),
		zap.String("operation", operation),
	)

	timer := time.NewTimer(d.timeout)
	defer timer.Stop()

	select {
	case resp := <-ch:
		return resp, nil
	case <-timer.C:
		return domain.ResponseMessage{}, ErrWaitTimeout
	case <-ctx.Done():
		return domain.ResponseMessage{}, ctx.Err()
	}
}

// Run 响应监听循环：读取响应流并投递给对应 waiter
// 从流头开始读（历史响应找不到 waiter 会被逐条丢弃），读错误指数退避
func (d *Dispatcher) Run(ctx context.Context) error {
	lastID := "0"
	backoff := time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		streams, err := d.client.XRead(ctx, &redis.XReadArgs{
			Streams: []string{d.responseStream, lastID},
			Count:   16,
			Block:   time.Second * 5,
		}).Result()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			d.logger.Error("Failed to read response stream",
				zap.Error(err),
				zap.Duration("backoff", backoff),
			)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
				backoff *= 2
				if backoff > maxBackoff {
					backoff = maxBackoff
				}
			}
			continue
		}
		backoff = time.Second

		for _, s := range streams {
			for _, msg := range s.Messages {
				lastID = msg.ID
				body, ok := msg.Values[bodyField].(string)
				if !ok {
					d.logger.Warn("Response message has no body, dropping", zap.String("message_id", msg.ID))
					continue
				}
				var resp domain.ResponseMessage
				if err := json.Unmarshal([]byte(body), &resp); err != nil {
					d.logger.Warn("Failed to unmarshal response, dropping",
						zap.String("message_id", msg.ID),
						zap.Error(err),
					)
					continue
				}
				d.deliver(resp)
			}
		}
	}
}

// deliver 按 cmd_id 投递响应；没有 waiter（已超时或他实例的调用）则丢弃
func (d *Dispatcher) deliver(resp domain.ResponseMessage) {
	d.mu.Lock()
	ch, ok := d.waiters[resp.CmdID]
	if ok {
		delete(d.waiters, resp.CmdID)
	}
	d.mu.Unlock()

	if !ok {
		d.logger.Debug("No waiter for response, dropping", zap.String("cmd_id", resp.CmdID))
		return
	}
	ch <- resp
}

func (d *Dispatcher) removeWaiter(cmdID string) {
	d.mu.Lock()
	delete(d.waiters, cmdID)
	d.mu.Unlock()
}
