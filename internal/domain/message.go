package domain

import "encoding/json"

// 命令通道支持的操作名
const (
	OpCreatePerson      = "createPerson"
	OpUpdateViews       = "updateViews"
	OpSetPersonVerified = "setPersonVerified"
	OpRefresh           = "refresh"
)

// CommandMessage Gateway → Worker 的命令，cmd_id 用于响应关联
type CommandMessage struct {
	CmdID     string          `json:"cmd_id"`
	Operation string          `json:"operation"`
	Args      json.RawMessage `json:"args"`
}

// ResponseMessage Worker → Gateway 的响应（或网关直接产生的响应）
// Code 为 HTTP 风格状态码；成功带 Data，失败带 Msg
type ResponseMessage struct {
	CmdID string          `json:"cmd_id,omitempty"`
	Code  int             `json:"code"`
	Data  json.RawMessage `json:"data,omitempty"`
	Msg   string          `json:"msg,omitempty"`
}

// OkResponse 构造 200 响应，data 序列化失败时降级为 500
func OkResponse(cmdID string, data any) ResponseMessage {
	raw, err := json.Marshal(data)
	if err != nil {
		return ResponseMessage{CmdID: cmdID, Code: 500, Msg: "marshal response data: " + err.Error()}
	}
	return ResponseMessage{CmdID: cmdID, Code: 200, Data: raw}
}

// FailResponse 构造带消息的失败响应
func FailResponse(cmdID string, code int, msg string) ResponseMessage {
	return ResponseMessage{CmdID: cmdID, Code: code, Msg: msg}
}

// SetVerifiedArgs setPersonVerified 的参数
type SetVerifiedArgs struct {
	IdentityNo string `json:"identity_no"`
	Flag       bool   `json:"flag"`
}

// RefreshArgs refresh 的参数，PID 为空表示全量重建
type RefreshArgs struct {
	PID string `json:"pid,omitempty"`
}
