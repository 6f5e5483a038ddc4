package models

import "time"

// TurnRecord archives one completed story turn for offline review.
type TurnRecord struct {
	ID         uint   `gorm:"primaryKey"`
	SessionID  string `gorm:"size:64;index:idx_session_turn,priority:1"`
	TurnNumber int    `gorm:"index:idx_session_turn,priority:2"`
	Choice     string `gorm:"type:text"`
	Narration  string `gorm:"type:text"`
	RawPayload string `gorm:"type:mediumtext"`
	Concluded  bool
	CreatedAt  time.Time
}
