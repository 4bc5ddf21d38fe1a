package permission

import (
	"net/http"
	"strings"
)

// Role 表示账号角色。
type Role string

const (
	RoleUser      Role = "user"      // 普通用户
	RoleModerator Role = "moderator" // 版主
	RoleAdmin     Role = "admin"     // 管理员
)

// ParseRole 解析角色字符串。
func ParseRole(s string) (Role, bool) {
	switch Role(strings.TrimSpace(strings.ToLower(s))) {
	case RoleUser:
		return RoleUser, true
	case RoleModerator:
		return RoleModerator, true
	case RoleAdmin:
		return RoleAdmin, true
	}
	return "", false
}

// Actor 表示发起请求的主体。
//
// Superuser 与 admin 角色在所有权限判定中等价。
type Actor struct {
	ID            uint
	Role          Role
	Superuser     bool
	Authenticated bool
}

// Anonymous 返回匿名主体。
func Anonymous() Actor {
	return Actor{}
}

// SafeMethod 判断 HTTP 方法是否只读。
func SafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// IsAdmin 判断主体是否具有管理员权限。
func IsAdmin(a Actor) bool {
	return a.Authenticated && (a.Role == RoleAdmin || a.Superuser)
}

// IsModerator 判断主体是否为版主。
func IsModerator(a Actor) bool {
	return a.Authenticated && a.Role == RoleModerator
}

// CanAccess 判定主体能否以指定方法访问资源。
//
// ownerID 为 nil 表示集合操作（无具体对象），非 nil 为对象作者 ID。
// 规则按顺序短路：
//  1. 只读方法对任何人放行（包括匿名）；
//  2. 集合上的写操作只要求已认证；
//  3. 对象上的写操作要求管理员 / 超级用户 / 版主 / 作者本人。
func CanAccess(a Actor, method string, ownerID *uint) bool {
	if SafeMethod(method) {
		return true
	}
	if !a.Authenticated {
		return false
	}
	if ownerID == nil {
		return true
	}
	if IsAdmin(a) || IsModerator(a) {
		return true
	}
	return a.ID == *ownerID
}

// CanWrite 判定主体能否写参考数据（分类 / 流派 / 作品）。
//
// 只读方法放行，写操作要求管理员。
func CanWrite(a Actor, method string) bool {
	if SafeMethod(method) {
		return true
	}
	return IsAdmin(a)
}
