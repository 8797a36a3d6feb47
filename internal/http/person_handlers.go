package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/titan/hive-person-service/internal/cache"
	"github.com/titan/hive-person-service/internal/domain"
	"github.com/titan/hive-person-service/internal/queue"
)

const maxBodyBytes = 1 << 20

// CommandDispatcher 写操作的命令通道（测试时可替换）
type CommandDispatcher interface {
	Dispatch(ctx context.Context, operation string, args any) (domain.ResponseMessage, error)
}

// PersonHandler 人员服务网关
// 读操作直查缓存；写操作经命令通道转给 Worker，阻塞等待关联响应
// 校验一律在发布命令之前完成：校验失败必须是纯 no-op
type PersonHandler struct {
	dispatcher CommandDispatcher
	cache      *cache.PersonCache
	logger     *zap.Logger
}

// NewPersonHandler 创建人员服务网关
func NewPersonHandler(dispatcher CommandDispatcher, personCache *cache.PersonCache, logger *zap.Logger) *PersonHandler {
	return &PersonHandler{
		dispatcher: dispatcher,
		cache:      personCache,
		logger:     logger,
	}
}

// CreatePerson POST /person/api/v1/persons
func (h *PersonHandler) CreatePerson(w http.ResponseWriter, r *http.Request) {
	if !callerAllowed(r, "createPerson") {
		writeFail(w, 403, "permission denied")
		return
	}

	var inputs []domain.PersonInput
	if err := readBodyJSON(r, maxBodyBytes, &inputs); err != nil {
		writeFail(w, 400, "invalid request body: "+err.Error())
		return
	}
	if len(inputs) == 0 {
		writeFail(w, 400, "people must be a non-empty array")
		return
	}
	for i, in := range inputs {
		if in.Name == "" {
			writeFail(w, 400, "people["+itoa(i)+"].name is required")
			return
		}
		if in.IdentityNo == "" {
			writeFail(w, 400, "people["+itoa(i)+"].identity_no is required")
			return
		}
	}

	h.logger.Info("createPerson",
		zap.String("role", r.Header.Get(CallerRoleHeader)),
		zap.Int("people", len(inputs)),
	)
	h.dispatch(w, r, domain.OpCreatePerson, inputs)
}

// GetPerson GET /person/api/v1/persons/{pid}
// 只读缓存，不经过 Worker；写入进行中也可读到旧快照（最终一致）
func (h *PersonHandler) GetPerson(w http.ResponseWriter, r *http.Request, pid string) {
	if !callerAllowed(r, "getPerson") {
		writeFail(w, 403, "permission denied")
		return
	}
	if _, err := uuid.Parse(pid); err != nil {
		writeFail(w, 400, "pid must be a valid uuid")
		return
	}

	h.logger.Info("getPerson",
		zap.String("role", r.Header.Get(CallerRoleHeader)),
		zap.String("pid", pid),
	)

	p, err := h.cache.Get(r.Context(), pid)
	if err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			writeFail(w, 404, "person not found")
			return
		}
		writeFail(w, 500, err.Error())
		return
	}
	writeOk(w, p)
}

// UpdateViews POST /person/api/v1/persons/views
func (h *PersonHandler) UpdateViews(w http.ResponseWriter, r *http.Request) {
	if !callerAllowed(r, "updateViews") {
		writeFail(w, 403, "permission denied")
		return
	}

	var updates []domain.ViewUpdate
	if err := readBodyJSON(r, maxBodyBytes, &updates); err != nil {
		writeFail(w, 400, "invalid request body: "+err.Error())
		return
	}
	if len(updates) == 0 {
		writeFail(w, 400, "updates must be a non-empty array")
		return
	}
	for i, upd := range updates {
		if _, err := uuid.Parse(upd.PID); err != nil {
			writeFail(w, 400, "updates["+itoa(i)+"].pid must be a valid uuid")
			return
		}
	}

	h.logger.Info("updateViews",
		zap.String("role", r.Header.Get(CallerRoleHeader)),
		zap.Int("updates", len(updates)),
	)
	h.dispatch(w, r, domain.OpUpdateViews, updates)
}

// SetPersonVerified POST /person/api/v1/persons/verified
func (h *PersonHandler) SetPersonVerified(w http.ResponseWriter, r *http.Request) {
	if !callerAllowed(r, "setPersonVerified") {
		writeFail(w, 403, "permission denied")
		return
	}

	var args domain.SetVerifiedArgs
	if err := readBodyJSON(r, maxBodyBytes, &args); err != nil {
		writeFail(w, 400, "invalid request body: "+err.Error())
		return
	}
	if args.IdentityNo == "" {
		writeFail(w, 400, "identity_no is required")
		return
	}

	h.logger.Info("setPersonVerified",
		zap.String("role", r.Header.Get(CallerRoleHeader)),
		zap.String("identity_no", args.IdentityNo),
		zap.Bool("flag", args.Flag),
	)
	h.dispatch(w, r, domain.OpSetPersonVerified, args)
}

// Refresh POST /person/api/v1/refresh
func (h *PersonHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if !callerAllowed(r, "refresh") {
		writeFail(w, 403, "permission denied")
		return
	}

	var args domain.RefreshArgs
	if err := readBodyJSON(r, maxBodyBytes, &args); err != nil {
		writeFail(w, 400, "invalid request body: "+err.Error())
		return
	}
	if args.PID != "" {
		if _, err := uuid.Parse(args.PID); err != nil {
			writeFail(w, 400, "pid must be a valid uuid")
			return
		}
	}

	h.logger.Info("refresh",
		zap.String("role", r.Header.Get(CallerRoleHeader)),
		zap.String("pid", args.PID),
	)
	h.dispatch(w, r, domain.OpRefresh, args)
}

// dispatch 发布命令并把 Worker 响应原样返回；等待超时整形为 504
func (h *PersonHandler) dispatch(w http.ResponseWriter, r *http.Request, operation string, args any) {
	resp, err := h.dispatcher.Dispatch(r.Context(), operation, args)
	if err != nil {
		if errors.Is(err, queue.ErrWaitTimeout) {
			writeFail(w, 504, "timed out waiting for worker response")
			return
		}
		h.logger.Error("Command dispatch failed",
			zap.String("operation", operation),
			zap.Error(err),
		)
		writeFail(w, 500, err.Error())
		return
	}
	writeResponse(w, resp)
}

func itoa(i int) string {
	return strconv.Itoa(i)
}
