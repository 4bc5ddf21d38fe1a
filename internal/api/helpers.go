package api

import (
	"net/http"
	"strconv"

	"reviewhub/internal/permission"

	"github.com/gin-gonic/gin"
)

// listResponse 列表接口的统一响应包装。
type listResponse struct {
	Count   int64       `json:"count"`
	Results interface{} `json:"results"`
}

// actorFrom 从请求上下文还原权限主体。
//
// 中间件未写入 userID 时视为匿名。
func actorFrom(c *gin.Context) permission.Actor {
	idVal, ok := c.Get("userID")
	if !ok {
		return permission.Anonymous()
	}
	id, ok := idVal.(uint)
	if !ok {
		return permission.Anonymous()
	}

	role := permission.RoleUser
	if roleVal, ok := c.Get("role"); ok {
		if s, ok := roleVal.(string); ok {
			if parsed, ok := permission.ParseRole(s); ok {
				role = parsed
			}
		}
	}

	superuser := false
	if suVal, ok := c.Get("superuser"); ok {
		if b, ok := suVal.(bool); ok {
			superuser = b
		}
	}

	return permission.Actor{
		ID:            id,
		Role:          role,
		Superuser:     superuser,
		Authenticated: true,
	}
}

// abortDenied 按主体状态返回 401（匿名）或 403（已认证）。
func abortDenied(c *gin.Context, actor permission.Actor) {
	if !actor.Authenticated {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	c.JSON(http.StatusForbidden, gin.H{"error": "permission denied"})
}

// pageParams 解析 limit/offset 分页参数并套用配置上限。
func (s *Server) pageParams(c *gin.Context) (int, int) {
	limit := parseQueryInt(c, "limit", s.cfg.App.DefaultPageSize)
	if limit <= 0 || limit > s.cfg.App.MaxPageSize {
		limit = s.cfg.App.DefaultPageSize
	}
	offset := parseQueryInt(c, "offset", 0)
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// parseQueryInt 解析查询参数中的整数值，失败时返回默认值。
func parseQueryInt(c *gin.Context, key string, def int) int {
	val := c.Query(key)
	if val == "" {
		return def
	}
	iv, err := strconv.Atoi(val)
	if err != nil {
		return def
	}
	return iv
}

// parseUintParam 解析路径参数中的 ID。
func parseUintParam(c *gin.Context, key string) (uint, bool) {
	raw := c.Param(key)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint(id), true
}
