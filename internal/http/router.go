package httpapi

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux（避免引入第三方路由依赖）
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterPersonRoutes 注册人员服务路由
func (r *Router) RegisterPersonRoutes(h *PersonHandler) {
	// createPerson
	r.Handle("/person/api/v1/persons", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.CreatePerson(w, req)
	})

	// getPerson: persons/{pid}
	r.Handle("/person/api/v1/persons/", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		pid := strings.TrimPrefix(req.URL.Path, "/person/api/v1/persons/")
		if pid == "" || strings.Contains(pid, "/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h.GetPerson(w, req, pid)
	})

	// updateViews
	r.Handle("/person/api/v1/persons/views", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.UpdateViews(w, req)
	})

	// setPersonVerified
	r.Handle("/person/api/v1/persons/verified", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.SetPersonVerified(w, req)
	})

	// refresh（缓存重建，admin）
	r.Handle("/person/api/v1/refresh", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.Refresh(w, req)
	})

	// exportPersons（Excel 导出，admin）
	r.Handle("/person/api/v1/persons/export", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.ExportPersons(w, req)
	})
}
