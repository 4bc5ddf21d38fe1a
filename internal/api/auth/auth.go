package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"reviewhub/internal/config"
	"reviewhub/internal/model"
	"reviewhub/internal/permission"
	"reviewhub/internal/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// UserStore 认证流程需要的账号读写。
type UserStore interface {
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	Create(ctx context.Context, user *model.User) error
	Save(ctx context.Context, user *model.User) error
}

// CodeSender 投递确认码。投递失败由调用方决定是否吞掉。
type CodeSender interface {
	SendConfirmationCode(toEmail string, code string) error
}

// Handler 提供注册与令牌接口。
type Handler struct {
	users     UserStore
	mailer    CodeSender
	jwtSecret []byte
	tokenTTL  time.Duration
	codeTTL   time.Duration
	logger    *slog.Logger
}

// NewHandler 创建 Auth Handler。
func NewHandler(users UserStore, mailer CodeSender, cfg *config.SecurityConfig, logger *slog.Logger) *Handler {
	return &Handler{
		users:     users,
		mailer:    mailer,
		jwtSecret: []byte(cfg.JWTSecret),
		tokenTTL:  cfg.TokenTTL,
		codeTTL:   cfg.ConfirmationCodeTTL,
		logger:    logger,
	}
}

type signupRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email,max=254"`
}

type tokenRequest struct {
	Username         string `json:"username" binding:"required"`
	ConfirmationCode string `json:"confirmation_code" binding:"required"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type customClaims struct {
	jwt.RegisteredClaims
	Role      string `json:"role"`
	Superuser bool   `json:"superuser"`
}

// Signup 注册账号并发送确认码。
//
// 同一 username+email 的重复请求是幂等的重发：每次生成新确认码，
// 旧码随之作废。username 已被其他邮箱占用时返回校验错误。
func (h *Handler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := model.ValidateUsername(req.Username); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	email := strings.TrimSpace(strings.ToLower(req.Email))

	existing, err := h.users.GetByUsername(c.Request.Context(), req.Username)
	if err == nil {
		if existing.Email != email {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username already registered with a different email"})
			return
		}
		if err := h.issueCode(c.Request.Context(), existing); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "issue confirmation code failed"})
			return
		}
		h.logger.Info("confirmation code reissued", slog.String("username", existing.Username))
		c.JSON(http.StatusOK, gin.H{"username": existing.Username, "email": existing.Email})
		return
	}
	if !isNotFound(err) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query user failed"})
		return
	}

	if _, err := h.users.GetByEmail(c.Request.Context(), email); err == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email already registered"})
		return
	} else if !isNotFound(err) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query user failed"})
		return
	}

	user := &model.User{
		Username: req.Username,
		Email:    email,
		Role:     permission.RoleUser,
	}
	if err := h.users.Create(c.Request.Context(), user); err != nil {
		// 并发注册输掉竞争时由唯一索引兜底
		if isDuplicate(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "username or email already registered"})
			return
		}
		h.logger.Error("create user failed", slog.String("username", req.Username), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create user failed"})
		return
	}
	if err := h.issueCode(c.Request.Context(), user); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "issue confirmation code failed"})
		return
	}

	h.logger.Info("user signed up", slog.String("username", user.Username))
	c.JSON(http.StatusOK, gin.H{"username": user.Username, "email": user.Email})
}

// Token 用确认码换取访问令牌。
//
// 成功后确认码立即作废（一次性使用），账号标记为已验证。
func (h *Handler) Token(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.GetByUsername(c.Request.Context(), req.Username)
	if err != nil {
		if isNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query user failed"})
		return
	}

	if user.ConfirmationCodeHash == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid confirmation code"})
		return
	}
	if user.ConfirmationCodeExpiresAt == nil || time.Now().After(*user.ConfirmationCodeExpiresAt) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "confirmation code expired"})
		return
	}
	code := strings.TrimSpace(req.ConfirmationCode)
	if bcrypt.CompareHashAndPassword([]byte(user.ConfirmationCodeHash), []byte(code)) != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid confirmation code"})
		return
	}

	user.IsVerified = true
	user.ConfirmationCodeHash = ""
	user.ConfirmationCodeExpiresAt = nil
	if err := h.users.Save(c.Request.Context(), user); err != nil {
		h.logger.Error("mark verified failed", slog.String("username", user.Username), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update user failed"})
		return
	}

	token, err := h.issueToken(user)
	if err != nil {
		h.logger.Error("sign token failed", slog.String("username", user.Username), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sign token failed"})
		return
	}

	metrics.TokenIssuedTotal.Inc()
	h.logger.Info("token issued", slog.String("username", user.Username), slog.String("role", string(user.Role)))
	c.JSON(http.StatusOK, tokenResponse{Token: token})
}

// issueCode 生成新确认码、落库并尽力投递。
//
// 投递失败只记日志不报错：确认码可以通过重复注册请求重发。
func (h *Handler) issueCode(ctx context.Context, user *model.User) error {
	code, err := generateCode()
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	exp := time.Now().Add(h.codeTTL)
	user.ConfirmationCodeHash = string(hash)
	user.ConfirmationCodeExpiresAt = &exp

	if err := h.users.Save(ctx, user); err != nil {
		h.logger.Error("save confirmation code failed", slog.String("username", user.Username), slog.String("error", err.Error()))
		return err
	}

	metrics.SignupCodeIssuedTotal.Inc()
	if err := h.mailer.SendConfirmationCode(user.Email, code); err != nil {
		h.logger.Warn("send confirmation email failed", slog.String("username", user.Username), slog.String("error", err.Error()))
	}
	return nil
}

func (h *Handler) issueToken(user *model.User) (string, error) {
	actor := user.Actor()
	claims := customClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(actor.ID), 10),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(h.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Role:      string(actor.Role),
		Superuser: actor.Superuser,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(h.jwtSecret)
}

// generateCode 生成 [10000, 99999] 区间内均匀分布的 5 位确认码。
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(90000))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(10000+n.Int64(), 10), nil
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
