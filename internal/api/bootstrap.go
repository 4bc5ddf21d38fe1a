package api

import (
	"context"
	"errors"
	"log/slog"

	"reviewhub/internal/model"
	"reviewhub/internal/permission"

	"gorm.io/gorm"
)

// BootstrapAdmin 确保配置指定的管理员账号存在且具备超级权限。
//
// 账号已存在时只提升角色，不会覆盖资料字段；未配置用户名则跳过。
func (s *Server) BootstrapAdmin(ctx context.Context) error {
	username := s.cfg.Security.BootstrapAdminUsername
	if username == "" {
		return nil
	}

	var user model.User
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = model.User{
			Username:    username,
			Email:       s.cfg.Security.BootstrapAdminEmail,
			Role:        permission.RoleAdmin,
			IsSuperuser: true,
			IsVerified:  true,
		}
		if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
			return err
		}
		s.logger.Info("bootstrap admin created", slog.String("username", username))
		return nil
	}

	updates := map[string]interface{}{
		"role":         permission.RoleAdmin,
		"is_superuser": true,
		"is_verified":  true,
	}
	if err := s.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
		return err
	}
	s.logger.Info("bootstrap admin ensured", slog.String("username", username))
	return nil
}
