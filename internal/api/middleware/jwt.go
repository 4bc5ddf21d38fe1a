package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

type customClaims struct {
	jwt.RegisteredClaims
	Role      string `json:"role"`
	Superuser bool   `json:"superuser"`
}

// AuthRequired 校验 JWT 并将 userID / role / superuser 写入上下文。
func AuthRequired(jwtSecret string) gin.HandlerFunc {
	secret := []byte(jwtSecret)
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			c.Abort()
			return
		}
		if !applyToken(c, secret, authHeader) {
			return
		}
		c.Next()
	}
}

// AuthOptional 在携带 Authorization 头时校验 JWT，匿名请求直接放行。
//
// 读接口对匿名开放、写接口在 handler 内按主体判权，因此这里
// 只在令牌存在且无效时才拒绝。
func AuthOptional(jwtSecret string) gin.HandlerFunc {
	secret := []byte(jwtSecret)
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Next()
			return
		}
		if !applyToken(c, secret, authHeader) {
			return
		}
		c.Next()
	}
}

func applyToken(c *gin.Context, secret []byte, authHeader string) bool {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
		c.Abort()
		return false
	}

	tokenStr := parts[1]
	claims := &customClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil || !token.Valid {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		c.Abort()
		return false
	}

	if claims.Subject == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token subject"})
		c.Abort()
		return false
	}

	uid, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid user id"})
		c.Abort()
		return false
	}

	c.Set("userID", uint(uid))
	role := strings.TrimSpace(strings.ToLower(claims.Role))
	if role == "" {
		role = "user"
	}
	c.Set("role", role)
	c.Set("superuser", claims.Superuser)
	return true
}
