package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"reviewhub/internal/model"
	"reviewhub/internal/permission"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// userResponse 账号的对外表示。
type userResponse struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Bio       string `json:"bio"`
	Role      string `json:"role"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Bio:       u.Bio,
		Role:      string(u.Role),
	}
}

type createUserRequest struct {
	Username  string `json:"username" binding:"required"`
	Email     string `json:"email" binding:"required,email,max=254"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Bio       string `json:"bio"`
	Role      string `json:"role"`
}

type updateUserRequest struct {
	Email     *string `json:"email"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Bio       *string `json:"bio"`
	Role      *string `json:"role"`
}

// handleListUsers 账号列表，仅管理员可见。
//
// GET /api/v1/users?search=&limit=&offset=
func (s *Server) handleListUsers(c *gin.Context) {
	actor := actorFrom(c)
	if !permission.IsAdmin(actor) {
		abortDenied(c, actor)
		return
	}

	limit, offset := s.pageParams(c)
	users, count, err := s.users.List(c.Request.Context(), c.Query("search"), limit, offset)
	if err != nil {
		s.logger.Error("list users failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list users failed"})
		return
	}

	results := make([]userResponse, 0, len(users))
	for i := range users {
		results = append(results, toUserResponse(&users[i]))
	}
	c.JSON(http.StatusOK, listResponse{Count: count, Results: results})
}

// handleCreateUser 管理员直接创建账号（无需确认码）。
func (s *Server) handleCreateUser(c *gin.Context) {
	actor := actorFrom(c)
	if !permission.IsAdmin(actor) {
		abortDenied(c, actor)
		return
	}

	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := model.ValidateUsername(req.Username); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	role := permission.RoleUser
	if req.Role != "" {
		parsed, ok := permission.ParseRole(req.Role)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid role"})
			return
		}
		role = parsed
	}

	user := &model.User{
		Username:  req.Username,
		Email:     strings.TrimSpace(strings.ToLower(req.Email)),
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Bio:       req.Bio,
		Role:      role,
	}
	if err := s.users.Create(c.Request.Context(), user); err != nil {
		if isDuplicate(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username or email already registered"})
			return
		}
		s.logger.Error("create user failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create user failed"})
		return
	}

	c.JSON(http.StatusCreated, toUserResponse(user))
}

// handleGetUser 按用户名查询账号，仅管理员。
func (s *Server) handleGetUser(c *gin.Context) {
	actor := actorFrom(c)
	if !permission.IsAdmin(actor) {
		abortDenied(c, actor)
		return
	}

	user, ok := s.loadUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, toUserResponse(user))
}

// handleUpdateUser 管理员修改账号，可变更角色。
func (s *Server) handleUpdateUser(c *gin.Context) {
	actor := actorFrom(c)
	if !permission.IsAdmin(actor) {
		abortDenied(c, actor)
		return
	}

	user, ok := s.loadUser(c)
	if !ok {
		return
	}

	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !s.applyUserUpdate(c, user, &req, true) {
		return
	}
	c.JSON(http.StatusOK, toUserResponse(user))
}

// handleDeleteUser 管理员删除账号及其评价和留言。
func (s *Server) handleDeleteUser(c *gin.Context) {
	actor := actorFrom(c)
	if !permission.IsAdmin(actor) {
		abortDenied(c, actor)
		return
	}

	user, ok := s.loadUser(c)
	if !ok {
		return
	}
	if err := s.users.Delete(c.Request.Context(), user); err != nil {
		s.logger.Error("delete user failed", slog.String("username", user.Username), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete user failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

// handleGetMe 返回当前账号信息。
//
// GET /api/v1/users/me
func (s *Server) handleGetMe(c *gin.Context) {
	actor := actorFrom(c)
	user, err := s.users.GetByID(c.Request.Context(), actor.ID)
	if err != nil {
		if isNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query user failed"})
		return
	}
	c.JSON(http.StatusOK, toUserResponse(user))
}

// handleUpdateMe 自助修改账号。
//
// 非管理员提交的 role 字段会被静默丢弃，而不是报错。
func (s *Server) handleUpdateMe(c *gin.Context) {
	actor := actorFrom(c)
	user, err := s.users.GetByID(c.Request.Context(), actor.ID)
	if err != nil {
		if isNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query user failed"})
		return
	}

	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !s.applyUserUpdate(c, user, &req, permission.IsAdmin(actor)) {
		return
	}
	c.JSON(http.StatusOK, toUserResponse(user))
}

// applyUserUpdate 套用部分更新并落库；roleAllowed 为 false 时忽略 role 字段。
func (s *Server) applyUserUpdate(c *gin.Context, user *model.User, req *updateUserRequest, roleAllowed bool) bool {
	if req.Email != nil {
		email := strings.TrimSpace(strings.ToLower(*req.Email))
		if email == "" || len(email) > 254 || !strings.Contains(email, "@") {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid email"})
			return false
		}
		user.Email = email
	}
	if req.FirstName != nil {
		user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		user.LastName = *req.LastName
	}
	if req.Bio != nil {
		user.Bio = *req.Bio
	}
	if req.Role != nil && roleAllowed {
		parsed, ok := permission.ParseRole(*req.Role)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid role"})
			return false
		}
		user.Role = parsed
	}

	if err := s.users.Save(c.Request.Context(), user); err != nil {
		if isDuplicate(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "email already registered"})
			return false
		}
		s.logger.Error("update user failed", slog.String("username", user.Username), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update user failed"})
		return false
	}
	return true
}

// loadUser 按路径参数加载账号，缺失时返回 404。
func (s *Server) loadUser(c *gin.Context) (*model.User, bool) {
	username := c.Param("username")
	user, err := s.users.GetByUsername(c.Request.Context(), username)
	if err != nil {
		if isNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query user failed"})
		return nil, false
	}
	return user, true
}

func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
