// Package domain 定义了应用程序中使用的核心数据结构 (数据库模型与事件)。
package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User 表示应用程序中的用户 (注册用户或游客)。
type User struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Email     string    `gorm:"type:varchar(191);uniqueIndex:idx_users_email;not null" json:"email"`
	Name      string    `gorm:"type:varchar(100);not null" json:"name"`
	Password  string    `gorm:"type:varchar(255);not null" json:"-"` // bcrypt 哈希，永不序列化
	IsGuest   bool      `gorm:"not null;default:false" json:"isGuest"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated"`
}

// BeforeCreate 在插入前生成 UUID 主键。
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
