package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/titan/hive-person-service/internal/cache"
	"github.com/titan/hive-person-service/internal/domain"
	"github.com/titan/hive-person-service/internal/queue"
	"github.com/titan/hive-person-service/internal/repository"
)

// Options Worker 的命令通道参数
type Options struct {
	CommandStream  string
	ResponseStream string
	ConsumerGroup  string
	ConsumerName   string
	BatchSize      int64
}

// Worker 调和引擎：消费命令流，执行事务性写入并刷新缓存，回写响应
// 单实例内逐条执行；多实例并发创建同一 identity_no 时由数据库唯一索引仲裁
type Worker struct {
	client *redis.Client
	repo   repository.PersonsRepository
	sync   *cache.Synchronizer
	opts   Options
	logger *zap.Logger
}

// New 创建 Worker
func New(client *redis.Client, repo repository.PersonsRepository, sync *cache.Synchronizer, opts Options, logger *zap.Logger) *Worker {
	return &Worker{
		client: client,
		repo:   repo,
		sync:   sync,
		opts:   opts,
		logger: logger,
	}
}

// Start 启动消费循环（带指数退避），ctx 取消后返回
// 响应发布成功后才确认消息，保证 at-least-once
func (w *Worker) Start(ctx context.Context) error {
	if err := queue.CreateConsumerGroup(ctx, w.client, w.opts.CommandStream, w.opts.ConsumerGroup); err != nil {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	w.logger.Info("Person worker started",
		zap.String("command_stream", w.opts.CommandStream),
		zap.String("consumer_group", w.opts.ConsumerGroup),
		zap.String("consumer_name", w.opts.ConsumerName),
	)

	backoff := time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			if err := w.consumeOnce(ctx); err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return nil
				}
				w.logger.Error("Failed to consume commands",
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
			} else {
				backoff = time.Second
			}
		}
	}
}

// consumeOnce 读取一批命令并逐条执行
func (w *Worker) consumeOnce(ctx context.Context) error {
	commands, err := queue.ReadCommands(ctx, w.client,
		w.opts.CommandStream, w.opts.ConsumerGroup, w.opts.ConsumerName, w.opts.BatchSize)
	if err != nil {
		return err
	}

	for _, sc := range commands {
		resp := w.Execute(ctx, sc.Command)

		if _, err := queue.PublishResponse(ctx, w.client, w.opts.ResponseStream, resp); err != nil {
			// 响应未发出则不确认，消息会被重投
			w.logger.Error("Failed to publish response",
				zap.String("cmd_id", sc.Command.CmdID),
				zap.Error(err),
			)
			continue
		}
		if err := queue.AckCommand(ctx, w.client, w.opts.CommandStream, w.opts.ConsumerGroup, sc.ID); err != nil {
			w.logger.Warn("Failed to ack command",
				zap.String("message_id", sc.ID),
				zap.Error(err),
			)
		}
	}
	return nil
}

// Execute 执行单条命令并构造响应
// 数据库错误在 repository 内回滚后到达这里，统一整形为状态码响应
func (w *Worker) Execute(ctx context.Context, cmd domain.CommandMessage) domain.ResponseMessage {
	w.logger.Info("Executing command",
		zap.String("cmd_id", cmd.CmdID),
		zap.String("operation", cmd.Operation),
	)

	switch cmd.Operation {
	case domain.OpCreatePerson:
		return w.createPerson(ctx, cmd)
	case domain.OpUpdateViews:
		return w.updateViews(ctx, cmd)
	case domain.OpSetPersonVerified:
		return w.setPersonVerified(ctx, cmd)
	case domain.OpRefresh:
		return w.refresh(ctx, cmd)
	default:
		return domain.FailResponse(cmd.CmdID, 400, fmt.Sprintf("unknown operation: %s", cmd.Operation))
	}
}

// createPerson 整批单事务调和，提交后刷新受影响 id 的缓存
func (w *Worker) createPerson(ctx context.Context, cmd domain.CommandMessage) domain.ResponseMessage {
	var inputs []domain.PersonInput
	if err := json.Unmarshal(cmd.Args, &inputs); err != nil {
		return domain.FailResponse(cmd.CmdID, 400, "invalid createPerson args: "+err.Error())
	}

	summaries, refreshIDs, err := w.repo.ReconcileBatch(ctx, inputs)
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			// 并发创建被唯一索引拦下：整批已回滚，调用方可重试
			return domain.FailResponse(cmd.CmdID, 409, err.Error())
		}
		return domain.FailResponse(cmd.CmdID, 500, err.Error())
	}

	if err := w.sync.RefreshPersons(ctx, refreshIDs); err != nil {
		return domain.FailResponse(cmd.CmdID, 500, "cache refresh failed: "+err.Error())
	}
	return domain.OkResponse(cmd.CmdID, summaries)
}

// updateViews 逐条独立事务：每条提交后刷新缓存再处理下一条
// 中途 404 终止处理，但已提交的前序元素保持生效（与 createPerson 的整批原子不同）
func (w *Worker) updateViews(ctx context.Context, cmd domain.CommandMessage) domain.ResponseMessage {
	var updates []domain.ViewUpdate
	if err := json.Unmarshal(cmd.Args, &updates); err != nil {
		return domain.FailResponse(cmd.CmdID, 400, "invalid updateViews args: "+err.Error())
	}

	updated := make([]string, 0, len(updates))
	for _, upd := range updates {
		if err := w.repo.UpdateViews(ctx, upd); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.FailResponse(cmd.CmdID, 404, fmt.Sprintf("person %s not found", upd.PID))
			}
			return domain.FailResponse(cmd.CmdID, 500, err.Error())
		}
		if err := w.sync.RefreshPersons(ctx, []string{upd.PID}); err != nil {
			return domain.FailResponse(cmd.CmdID, 500, "cache refresh failed: "+err.Error())
		}
		updated = append(updated, upd.PID)
	}
	return domain.OkResponse(cmd.CmdID, updated)
}

// setPersonVerified 设置认证标志并刷新缓存
func (w *Worker) setPersonVerified(ctx context.Context, cmd domain.CommandMessage) domain.ResponseMessage {
	var args domain.SetVerifiedArgs
	if err := json.Unmarshal(cmd.Args, &args); err != nil {
		return domain.FailResponse(cmd.CmdID, 400, "invalid setPersonVerified args: "+err.Error())
	}

	pid, err := w.repo.SetVerified(ctx, args.IdentityNo, args.Flag)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.FailResponse(cmd.CmdID, 404, fmt.Sprintf("identity_no %s not found", args.IdentityNo))
		}
		return domain.FailResponse(cmd.CmdID, 500, err.Error())
	}

	if err := w.sync.RefreshPersons(ctx, []string{pid}); err != nil {
		return domain.FailResponse(cmd.CmdID, 500, "cache refresh failed: "+err.Error())
	}
	return domain.OkResponse(cmd.CmdID, "Success")
}

// refresh 定向或全量缓存重建；错误消息直接随 500 返回
func (w *Worker) refresh(ctx context.Context, cmd domain.CommandMessage) domain.ResponseMessage {
	var args domain.RefreshArgs
	if len(cmd.Args) > 0 {
		if err := json.Unmarshal(cmd.Args, &args); err != nil {
			return domain.FailResponse(cmd.CmdID, 400, "invalid refresh args: "+err.Error())
		}
	}

	var err error
	if args.PID != "" {
		err = w.sync.RefreshPersons(ctx, []string{args.PID})
	} else {
		err = w.sync.RefreshAll(ctx)
	}
	if err != nil {
		return domain.FailResponse(cmd.CmdID, 500, err.Error())
	}
	return domain.OkResponse(cmd.CmdID, "Success")
}
