package models

import "time"

// UsageRecord is one completed upstream call in the spend ledger.
// Records are append-only: never updated, never deleted. A record exists
// only for calls that completed successfully; denied or failed calls
// leave no trace here.
type UsageRecord struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
	Operation    string    `gorm:"size:100;not null;index" json:"operation"`
	CostUSD      float64   `gorm:"not null" json:"cost_usd"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	TargetPath   string    `gorm:"size:500" json:"target_path,omitempty"`
}

func (UsageRecord) TableName() string { return "usage_records" }
