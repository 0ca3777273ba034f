package model

import "time"

// Exception is one structured error record as written to a *-json log
// channel, kept for auditing and lookup by log id.
type Exception struct {
	ID uint `gorm:"primaryKey" json:"id"`

	// Correlates with the "[id]" prefix shown to users and in plain logs
	LogID   string `gorm:"size:32;index" json:"log_id"`
	Channel string `gorm:"size:32;index" json:"channel"` // exception | fatal | error

	// Error information
	Type    string  `gorm:"size:200" json:"type"`
	File    string  `gorm:"size:500" json:"file"`
	Line    int     `json:"line"`
	Message string  `gorm:"type:text" json:"message"`
	Code    int     `json:"code"`
	URL     *string `gorm:"size:2000" json:"url"`

	// Set when the reporting mask hid the plain log line
	Suppressed bool `gorm:"index" json:"suppressed"`

	// Full record including backtrace and cause chain, as JSON
	Record string `gorm:"type:text" json:"record"`

	// Audit info
	CreatedAt time.Time `json:"created_at"`
}
