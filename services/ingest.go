package services

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"litbase/store"
)

// IngestService bündelt den Ingestion-Pfad: Identifier auflösen oder anlegen,
// dann den Text-Payload dagegen ablegen.
type IngestService struct {
	Refs    *store.RefStore
	Content *store.ContentStore
	Logger  *zap.Logger
}

// NewIngestService erstellt einen IngestService.
func NewIngestService(refs *store.RefStore, content *store.ContentStore, logger *zap.Logger) *IngestService {
	return &IngestService{Refs: refs, Content: content, Logger: logger}
}

// IngestContent legt für einen Identifier-Satz den kanonischen TextRef an
// (oder findet ihn) und speichert den Payload. replace steuert die
// Duplikat-Politik: false lässt ErrDuplicateContent zum Aufrufer durch,
// true ersetzt die bestehende Zeile.
func (s *IngestService) IngestContent(ctx context.Context, ids store.RefIdentifiers,
	source, format, textType, text string, replace bool) (refID, contentID uint, err error) {

	refID, err = s.Refs.UpsertRef(ctx, ids)
	if err != nil {
		return 0, 0, err
	}

	contentID, err = s.Content.PutContent(ctx, refID, source, format, textType, text)
	if err != nil {
		if replace && errors.Is(err, store.ErrDuplicateContent) {
			s.Logger.Info("Bestehender Content wird ersetzt",
				zap.Uint("text_ref_id", refID),
				zap.String("source", source),
				zap.String("format", format))
			contentID, err = s.Content.ReplaceContent(ctx, refID, source, format, textType, text)
		}
		if err != nil {
			return refID, 0, err
		}
	}
	return refID, contentID, nil
}
