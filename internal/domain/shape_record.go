package domain

import "time"

// ShapeRecord 是图形的持久化记录。Payload 存图形线上 JSON 的原文
// （协议的双重编码原样落库），主键即服务端权威 id，list-by-room 时
// 用主键覆盖 Payload 里可能残留的客户端临时 id。
type ShapeRecord struct {
	ID        uint      `gorm:"primaryKey"`
	RoomID    uint      `gorm:"index;not null"`
	OwnerID   uint      `gorm:"index;not null"`
	Payload   string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}
