package domain

import "time"

// Room 表示一个协作画布房间。成员关系只存在于 Hub 的运行时状态，
// 数据库里不落成员表；房间清空后图形记录会被延迟清理。
type Room struct {
	ID         uint      `gorm:"primaryKey"`
	Name       string    `gorm:"size:191"`
	CreatorID  uint      `gorm:"index;not null"`
	InviteCode string    `gorm:"uniqueIndex;size:191;not null"` // 加入房间的邀请码
	CreatedAt  time.Time `gorm:"autoCreateTime"`
	LastActive time.Time `gorm:"index"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime"`
}
