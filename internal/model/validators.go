package model

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	usernameRe = regexp.MustCompile(`^[\w.@+-]+$`)
	slugRe     = regexp.MustCompile(`^[-a-zA-Z0-9_]+$`)
)

// ValidateUsername 检查用户名合法性。
//
// 保留字 "me" 被自助接口占用，不允许注册。
func ValidateUsername(username string) error {
	if username == "" {
		return fmt.Errorf("username is required")
	}
	if len(username) > 150 {
		return fmt.Errorf("username must be at most 150 characters")
	}
	if strings.EqualFold(username, "me") {
		return fmt.Errorf("username %q is reserved", "me")
	}
	if !usernameRe.MatchString(username) {
		return fmt.Errorf("username may only contain letters, digits and @/./+/-/_")
	}
	return nil
}

// ValidateSlug 检查分类 / 流派 slug 合法性。
func ValidateSlug(slug string) error {
	if slug == "" {
		return fmt.Errorf("slug is required")
	}
	if len(slug) > 50 {
		return fmt.Errorf("slug must be at most 50 characters")
	}
	if !slugRe.MatchString(slug) {
		return fmt.Errorf("slug may only contain letters, digits, hyphens and underscores")
	}
	return nil
}

// ValidateScore 检查评分是否在 [1,10] 内。
func ValidateScore(score int) error {
	if score < 1 || score > 10 {
		return fmt.Errorf("score must be between 1 and 10")
	}
	return nil
}

// ValidateYear 检查作品年份：必须为正且不晚于当前年份。
func ValidateYear(year int) error {
	now := time.Now().Year()
	if year <= 0 || year > now {
		return fmt.Errorf("year must be positive and not later than %d", now)
	}
	return nil
}
