package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Task 是房间内的一个任务，由若干子任务组成。
type Task struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Title     string    `gorm:"type:varchar(255);not null" json:"title"`
	RoomID    string    `gorm:"type:varchar(36);index;not null" json:"room"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated"`
}

func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// Subtask 是任务下可单独完成的一项。
// Order 不要求唯一，相同时按创建时间排序。
type Subtask struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Title     string    `gorm:"type:varchar(255);not null" json:"title"`
	TaskID    string    `gorm:"type:varchar(36);index;not null" json:"task"`
	Order     int       `gorm:"column:sort_order;not null;default:0" json:"order"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated"`
}

func (s *Subtask) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// Completion 记录某用户对某子任务的完成进度，取值 [0,1]。
type Completion struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID    string    `gorm:"type:varchar(36);uniqueIndex:idx_completion_user_subtask,priority:1;not null" json:"user"`
	SubtaskID string    `gorm:"type:varchar(36);uniqueIndex:idx_completion_user_subtask,priority:2;index;not null" json:"subtask"`
	Progress  float64   `gorm:"not null;default:0" json:"progress"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated"`
}

func (c *Completion) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// ValidProgress 判断进度是否在 [0,1] 区间内。
func ValidProgress(p float64) bool {
	return p >= 0 && p <= 1
}
