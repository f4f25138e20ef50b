package store

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"litbase/models"
)

// ContentStore verwaltet die versionierten Text-Payloads pro TextRef.
type ContentStore struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

// NewContentStore erstellt einen ContentStore mit injizierter DB-Verbindung.
func NewContentStore(db *gorm.DB, logger *zap.Logger) *ContentStore {
	return &ContentStore{DB: db, Logger: logger}
}

// PutContent komprimiert und speichert einen neuen Payload. Existiert bereits
// Content für (text_ref_id, source, format), schlägt der Aufruf mit
// ErrDuplicateContent fehl – der Store überschreibt niemals stillschweigend.
func (s *ContentStore) PutContent(ctx context.Context, textRefID uint, source, format, textType, text string) (uint, error) {
	payload, err := zipString(text)
	if err != nil {
		return 0, fmt.Errorf("payload-kompression fehlgeschlagen: %w", err)
	}
	content := models.TextContent{
		TextRefID: textRefID,
		Source:    source,
		Format:    format,
		TextType:  textType,
		Content:   payload,
	}
	if err := s.DB.WithContext(ctx).Create(&content).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return 0, fmt.Errorf("%w: text_ref %d source %q format %q",
				ErrDuplicateContent, textRefID, source, format)
		}
		return 0, err
	}
	return content.ID, nil
}

// ReplaceContent entfernt den bestehenden Eintrag für (text_ref_id, source,
// format) und legt den neuen Payload als frische Zeile an. Hängen Readings am
// alten Eintrag, verweigert der Fremdschlüssel das Ersetzen – das ist die
// dokumentierte Lösch-Politik (refuse, nicht cascade).
func (s *ContentStore) ReplaceContent(ctx context.Context, textRefID uint, source, format, textType, text string) (uint, error) {
	payload, err := zipString(text)
	if err != nil {
		return 0, fmt.Errorf("payload-kompression fehlgeschlagen: %w", err)
	}
	content := models.TextContent{
		TextRefID: textRefID,
		Source:    source,
		Format:    format,
		TextType:  textType,
		Content:   payload,
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("text_ref_id = ? AND source = ? AND format = ?", textRefID, source, format).
			Delete(&models.TextContent{}).Error; err != nil {
			return err
		}
		return tx.Create(&content).Error
	})
	if err != nil {
		return 0, err
	}
	return content.ID, nil
}

// GetContent lädt einen einzelnen Content-Eintrag.
func (s *ContentStore) GetContent(ctx context.Context, contentID uint) (*models.TextContent, error) {
	var content models.TextContent
	if err := s.DB.WithContext(ctx).First(&content, contentID).Error; err != nil {
		return nil, err
	}
	return &content, nil
}

// ContentsForRef gibt alle Content-Einträge eines TextRef zurück.
func (s *ContentStore) ContentsForRef(ctx context.Context, textRefID uint) ([]models.TextContent, error) {
	var contents []models.TextContent
	if err := s.DB.WithContext(ctx).
		Where("text_ref_id = ?", textRefID).
		Order("id asc").
		Find(&contents).Error; err != nil {
		return nil, err
	}
	return contents, nil
}

// PmidAbstract ist ein (pmid, text)-Tupel aus der gesammelten Abstract-Abfrage.
type PmidAbstract struct {
	PMID string `json:"pmid"`
	Text string `json:"text"`
}

// GetAbstractsByPmid joint text_ref und text_content, filtert auf Abstracts und
// dekomprimiert die Payloads. PMIDs ohne gespeichertes Abstract fehlen im
// Ergebnis; das ist kein Fehler. Nicht dekomprimierbare Zeilen werden geloggt
// und übersprungen, sie brechen die Abfrage nicht ab.
func (s *ContentStore) GetAbstractsByPmid(ctx context.Context, pmids []string) ([]PmidAbstract, error) {
	if len(pmids) == 0 {
		return nil, nil
	}

	// Die Spalten-Tags sind nötig: GORMs Namens-Strategie würde PMID sonst
	// nicht auf den Alias "pmid" abbilden und das Feld bliebe leer.
	var rows []struct {
		PMID    string `gorm:"column:pmid"`
		Content []byte `gorm:"column:content"`
	}
	err := s.DB.WithContext(ctx).
		Table("text_content").
		Select("text_ref.pmid AS pmid, text_content.content AS content").
		Joins("JOIN text_ref ON text_ref.id = text_content.text_ref_id").
		Where("text_content.text_type = ?", models.TextTypeAbstract).
		Where("text_ref.pmid IN ?", pmids).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	results := make([]PmidAbstract, 0, len(rows))
	for _, row := range rows {
		text, err := unzipString(row.Content)
		if err != nil {
			s.Logger.Warn("Abstract-Payload nicht dekomprimierbar, Zeile übersprungen",
				zap.String("pmid", row.PMID), zap.Error(err))
			continue
		}
		results = append(results, PmidAbstract{PMID: row.PMID, Text: text})
	}
	return results, nil
}

// ListContentMissingReading gibt die IDs aller Content-Einträge zurück, für die
// der gegebene Reader noch kein Reading abgelegt hat (Anti-Join). Treibt den
// inkrementellen Lese-Sweep.
func (s *ContentStore) ListContentMissingReading(ctx context.Context, readerName string) ([]uint, error) {
	var ids []uint
	err := s.DB.WithContext(ctx).
		Model(&models.TextContent{}).
		Where(`NOT EXISTS (
			SELECT 1 FROM readings
			WHERE readings.text_content_id = text_content.id
			  AND readings.reader_version LIKE ?)`, readerName+"%").
		Order("id asc").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
