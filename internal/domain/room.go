package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Room 表示一个对决房间。
// 参与者以 RoomParticipant 关系表存储，读取时由仓库层填充 Participants。
type Room struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(100);not null" json:"name"`
	Code      string    `gorm:"type:varchar(16);uniqueIndex:idx_rooms_code;not null" json:"code"` // 加入房间用的短码
	OwnerID   string    `gorm:"type:varchar(36);index;not null" json:"owner"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated"`

	Participants []User `gorm:"-" json:"participants"`
}

// BeforeCreate 在插入前生成 UUID 主键。
func (r *Room) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// HasParticipant 判断用户是否已在参与者列表中。
func (r *Room) HasParticipant(userID string) bool {
	for _, p := range r.Participants {
		if p.ID == userID {
			return true
		}
	}
	return false
}

// RoomParticipant 是房间与用户之间的成员关系 (集合语义)。
// 复合主键保证同一用户在同一房间最多一行，增删都是单条原子语句。
type RoomParticipant struct {
	RoomID   string    `gorm:"type:varchar(36);primaryKey"`
	UserID   string    `gorm:"type:varchar(36);primaryKey;index"`
	JoinedAt time.Time `gorm:"autoCreateTime"`
}
