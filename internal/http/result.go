package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/titan/hive-person-service/internal/domain"
)

// 响应信封直接复用 domain.ResponseMessage（HTTP 状态码与信封 code 一致）
// cmd_id 是通道内部的关联键，不暴露给 HTTP 调用方

func writeResponse(w http.ResponseWriter, resp domain.ResponseMessage) {
	resp.CmdID = ""
	writeJSON(w, resp.Code, resp)
}

func writeFail(w http.ResponseWriter, code int, msg string) {
	writeResponse(w, domain.FailResponse("", code, msg))
}

func writeOk(w http.ResponseWriter, data any) {
	writeResponse(w, domain.OkResponse("", data))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func readBodyJSON(r *http.Request, maxBytes int64, out any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes))
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}
