package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/titan/hive-person-service/internal/domain"
)

const (
	testCommandStream  = "person:commands"
	testResponseStream = "person:responses"
	testGroup          = "person-workers"
)

func setupTestChannel(t *testing.T, timeout time.Duration) (*redis.Client, *Dispatcher, context.CancelFunc) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	d := NewDispatcher(client, testCommandStream, testResponseStream, timeout, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	go d.Run(ctx)
	t.Cleanup(cancel)

	return client, d, cancel
}

// echoWorker 消费命令流并原样回复 200 响应（模拟 Worker 侧）
func echoWorker(ctx context.Context, client *redis.Client) {
	_ = CreateConsumerGroup(ctx, client, testCommandStream, testGroup)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		commands, err := ReadCommands(ctx, client, testCommandStream, testGroup, "echo-1", 10)
		if err != nil {
			return
		}
		for _, sc := range commands {
			resp := domain.OkResponse(sc.Command.CmdID, map[string]string{"echo": sc.Command.Operation})
			if _, err := PublishResponse(ctx, client, testResponseStream, resp); err != nil {
				return
			}
			_ = AckCommand(ctx, client, testCommandStream, testGroup, sc.ID)
		}
	}
}

func TestDispatch_Fulfilled(t *testing.T) {
	client, d, _ := setupTestChannel(t, 5*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go echoWorker(ctx, client)

	resp, err := d.Dispatch(context.Background(), domain.OpRefresh, domain.RefreshArgs{})

	require.NoError(t, err)
	assert.Equal(t, 200, resp.Code)

	var data map[string]string
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.Equal(t, domain.OpRefresh, data["echo"])
}

func TestDispatch_ConcurrentCallsNoCrosstalk(t *testing.T) {
	client, d, _ := setupTestChannel(t, 5*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go echoWorker(ctx, client)

	type result struct {
		op   string
		resp domain.ResponseMessage
		err  error
	}
	ops := []string{domain.OpCreatePerson, domain.OpUpdateViews, domain.OpSetPersonVerified, domain.OpRefresh}
	results := make(chan result, len(ops))

	for _, op := range ops {
		go func(op string) {
			resp, err := d.Dispatch(context.Background(), op, nil)
			results <- result{op: op, resp: resp, err: err}
		}(op)
	}

	for range ops {
		r := <-results
		require.NoError(t, r.err)
		var data map[string]string
		require.NoError(t, json.Unmarshal(r.resp.Data, &data))
		// 每个调用只收到与自己 cmd_id 关联的响应
		assert.Equal(t, r.op, data["echo"])
	}
}

func TestDispatch_Timeout(t *testing.T) {
	_, d, _ := setupTestChannel(t, 100*time.Millisecond)

	// 没有 Worker 消费，等待必然超时
	_, err := d.Dispatch(context.Background(), domain.OpRefresh, domain.RefreshArgs{})

	assert.ErrorIs(t, err, ErrWaitTimeout)
}

func TestDispatch_LateResponseDropped(t *testing.T) {
	client, d, _ := setupTestChannel(t, 100*time.Millisecond)

	_, err := d.Dispatch(context.Background(), domain.OpRefresh, domain.RefreshArgs{})
	require.ErrorIs(t, err, ErrWaitTimeout)

	// 迟到响应（以及无人认领的响应）只会被丢弃，不能影响后续调用
	_, err = PublishResponse(context.Background(), client, testResponseStream,
		domain.FailResponse("nobody-waits-for-me", 500, "late"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go echoWorker(ctx, client)

	d.timeout = 5 * time.Second
	resp, err := d.Dispatch(context.Background(), domain.OpRefresh, domain.RefreshArgs{})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.Code)
}

func TestDispatch_ContextCanceled(t *testing.T) {
	_, d, _ := setupTestChannel(t, 5*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Dispatch(ctx, domain.OpRefresh, domain.RefreshArgs{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReadCommands_Empty(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	ctx := context.Background()

	require.NoError(t, CreateConsumerGroup(ctx, client, testCommandStream, testGroup))
	// 再次创建同名组应当幂等
	require.NoError(t, CreateConsumerGroup(ctx, client, testCommandStream, testGroup))

	readCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	commands, _ := ReadCommands(readCtx, client, testCommandStream, testGroup, "c1", 10)
	assert.Empty(t, commands)
}
