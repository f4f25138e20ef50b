package store

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"litbase/models"
)

// newTestDB öffnet eine In-Memory-SQLite-Datenbank mit dem vollen Schema.
// Der DSN ist pro Test eindeutig, damit sich Tests nicht in die Quere kommen;
// Fremdschlüssel-Prüfung muss bei SQLite explizit eingeschaltet werden.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.TextRef{}, &models.TextContent{}, &models.Reading{},
		&models.DBInfo{}, &models.StatementRow{}, &models.AgentRow{}))
	return db
}

func strPtr(s string) *string {
	return &s
}
