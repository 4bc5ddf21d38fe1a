package model

import (
	"time"

	"reviewhub/internal/permission"
)

// User 表示系统账号。
type User struct {
	ID          uint            `gorm:"primaryKey"`                    // 账号 ID
	Username    string          `gorm:"type:varchar(150);uniqueIndex"` // 用户名（唯一）
	Email       string          `gorm:"type:varchar(254);uniqueIndex"` // 邮箱（唯一）
	FirstName   string          `gorm:"type:varchar(150)"`             // 名
	LastName    string          `gorm:"type:varchar(150)"`             // 姓
	Bio         string          `gorm:"type:text"`                     // 简介
	Role        permission.Role `gorm:"type:varchar(16);default:user"` // 角色: user / moderator / admin
	IsSuperuser bool            `gorm:"default:false"`                 // 超级用户标记（权限上等同 admin）
	IsVerified  bool            `gorm:"default:false"`                 // 是否完成邮箱验证

	ConfirmationCodeHash      string     `gorm:"type:varchar(80)"` // 待验证确认码的 bcrypt 哈希
	ConfirmationCodeExpiresAt *time.Time // 确认码过期时间
	CreatedAt                 time.Time  // 创建时间

	Reviews  []Review  `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE"`
	Comments []Comment `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE"`
}

// Actor 返回该账号对应的权限主体。
func (u *User) Actor() permission.Actor {
	return permission.Actor{
		ID:            u.ID,
		Role:          u.Role,
		Superuser:     u.IsSuperuser,
		Authenticated: true,
	}
}
