package httpapi

import "net/http"

// CallerRoleHeader 调用方角色（由上游接入层注入，本服务只做查表放行）
const CallerRoleHeader = "X-Caller-Role"

const (
	RoleMobile = "mobile"
	RoleAdmin  = "admin"
)

// opPermissions 操作 → 角色放行表
// 人员读写对 mobile/admin 开放；缓存重建与导出仅限 admin
var opPermissions = map[string]map[string]bool{
	"createPerson":      {RoleMobile: true, RoleAdmin: true},
	"getPerson":         {RoleMobile: true, RoleAdmin: true},
	"updateViews":       {RoleMobile: true, RoleAdmin: true},
	"setPersonVerified": {RoleMobile: true, RoleAdmin: true},
	"refresh":           {RoleAdmin: true},
	"exportPersons":     {RoleAdmin: true},
}

// callerAllowed 检查调用方角色是否可执行该操作
func callerAllowed(r *http.Request, operation string) bool {
	role := r.Header.Get(CallerRoleHeader)
	allowed, ok := opPermissions[operation]
	if !ok {
		return false
	}
	return allowed[role]
}
