package migrations

import (
	"database/sql"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// LegacyExceptionTable holds exception rows written in the old per-service
// layout (service, module, method, stack, level, context).
const LegacyExceptionTable = "exceptions_legacy"

// PrepareLegacyExceptionTable moves an exceptions table still in the old
// layout out of the way so AutoMigrate can create the structured record
// table. Its rows are imported afterwards by a data migration.
func PrepareLegacyExceptionTable(db *gorm.DB) error {
	if db.Dialector.Name() != "postgres" {
		return nil
	}

	dataType, exists, err := lookupColumnType(db, "exceptions", "service")
	if err != nil {
		return fmt.Errorf("inspect exceptions.service: %w", err)
	}
	if !exists || !isStringy(dataType) {
		return nil
	}

	if err := db.Exec(fmt.Sprintf("ALTER TABLE exceptions RENAME TO %s", LegacyExceptionTable)).Error; err != nil {
		return fmt.Errorf("rename legacy exceptions table: %w", err)
	}
	return nil
}

func lookupColumnType(db *gorm.DB, table, column string) (dataType string, exists bool, err error) {
	row := db.Raw(
		`SELECT data_type FROM information_schema.columns WHERE table_name = ? AND column_name = ?`,
		table,
		column,
	).Row()

	if scanErr := row.Scan(&dataType); scanErr != nil {
		if scanErr == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, scanErr
	}

	return dataType, true, nil
}

func isStringy(dataType string) bool {
	dataType = strings.ToLower(dataType)
	return strings.Contains(dataType, "char") || dataType == "text"
}
