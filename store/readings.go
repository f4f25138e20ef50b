package store

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"litbase/models"
)

// ReadingStore verwaltet die Annotations-Ergebnisse der Lese-Pipeline.
// Einen Lese-Zugriff braucht der Kern nicht – Readings werden von der
// Pipeline geschrieben und von externen Auswertungen konsumiert.
type ReadingStore struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

// NewReadingStore erstellt einen ReadingStore mit injizierter DB-Verbindung.
func NewReadingStore(db *gorm.DB, logger *zap.Logger) *ReadingStore {
	return &ReadingStore{DB: db, Logger: logger}
}

// PutReading speichert einen Annotations-Payload. Existiert bereits ein
// Reading für (text_content_id, reader_version), schlägt der Aufruf mit
// ErrDuplicateReading fehl – wiederholte Läufe derselben Version sind damit
// auf Storage-Ebene idempotent.
func (s *ReadingStore) PutReading(ctx context.Context, textContentID uint, readerVersion string, payload []byte) error {
	reading := models.Reading{
		TextContentID: textContentID,
		ReaderVersion: readerVersion,
		Payload:       payload,
	}
	if err := s.DB.WithContext(ctx).Create(&reading).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: text_content %d version %q",
				ErrDuplicateReading, textContentID, readerVersion)
		}
		return err
	}
	return nil
}
