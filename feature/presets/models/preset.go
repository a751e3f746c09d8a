package models

import "time"

// Preset is a named snapshot of a server set stored in SQL.
type Preset struct {
	Name      string    `gorm:"column:name;primaryKey;size:191" json:"name"`
	Data      string    `gorm:"column:data;type:text;not null" json:"data"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updatedAt"`
}

// TableName returns the table holding presets.
func (Preset) TableName() string {
	return "mcp_presets"
}
