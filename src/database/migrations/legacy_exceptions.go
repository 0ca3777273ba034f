package migrations

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

type legacyException struct {
	ID        uint
	Service   string
	Module    string
	Method    string
	Message   string
	Stack     string
	Level     string
	CreatedAt time.Time
}

// importLegacyExceptions copies rows from the old exceptions layout into the
// structured record table. Levels map onto channels: fatal rows land on the
// fatal channel, everything else on the exception channel.
func importLegacyExceptions(db *gorm.DB) error {
	if !db.Migrator().HasTable(LegacyExceptionTable) {
		return nil
	}

	var rows []legacyException
	if err := db.Table(LegacyExceptionTable).Order("id").Find(&rows).Error; err != nil {
		return fmt.Errorf("read legacy exceptions: %w", err)
	}

	for _, row := range rows {
		channel := "exception"
		if strings.EqualFold(row.Level, "fatal") {
			channel = "fatal"
		}
		kind := strings.Trim(strings.Join([]string{row.Module, row.Method}, "."), ".")
		if kind == "" {
			kind = row.Service
		}

		err := db.Exec(
			`INSERT INTO exceptions (log_id, channel, type, message, created_at) VALUES (?, ?, ?, ?, ?)`,
			fmt.Sprintf("L%07d", row.ID), channel, kind, row.Message, row.CreatedAt,
		).Error
		if err != nil {
			return fmt.Errorf("import legacy exception %d: %w", row.ID, err)
		}
	}
	return nil
}
