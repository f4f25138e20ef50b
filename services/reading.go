package services

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"litbase/config"
	"litbase/readers/reach"
	"litbase/store"
)

// ReadingService treibt die inkrementelle Lese-Pipeline: Content-Einträge
// ohne Reading der konfigurierten Reader-Version werden durch den
// Lese-Service geschickt und das Ergebnis abgelegt.
type ReadingService struct {
	Content   *store.ContentStore
	Readings  *store.ReadingStore
	Reader    *reach.Client
	Logger    *zap.Logger
	BatchSize int
}

// NewReadingService erstellt einen ReadingService.
func NewReadingService(cfg *config.Config, content *store.ContentStore, readings *store.ReadingStore,
	reader *reach.Client, logger *zap.Logger) *ReadingService {
	return &ReadingService{
		Content:   content,
		Readings:  readings,
		Reader:    reader,
		Logger:    logger,
		BatchSize: cfg.ReadingBatchSize,
	}
}

// RunSweep verarbeitet einen Schwung ungelesener Content-Einträge und gibt
// die Anzahl neu abgelegter Readings zurück. Ohne konfigurierten Lese-Service
// ist der Sweep ein No-Op.
func (s *ReadingService) RunSweep(ctx context.Context) (int, error) {
	if !s.Reader.Available() {
		s.Logger.Info("Kein Lese-Service konfiguriert, Sweep wird übersprungen.")
		return 0, nil
	}

	readerName := readerNameFromVersion(s.Reader.Version())
	ids, err := s.Content.ListContentMissingReading(ctx, readerName)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		s.Logger.Info("Kein ungelesener Content vorhanden.")
		return 0, nil
	}
	if s.BatchSize > 0 && len(ids) > s.BatchSize {
		ids = ids[:s.BatchSize]
	}
	s.Logger.Info("Starte Lese-Sweep",
		zap.Int("content_count", len(ids)),
		zap.String("reader_version", s.Reader.Version()))

	var wg sync.WaitGroup
	var mu sync.Mutex
	stored := 0
	semaphore := make(chan struct{}, 5) // Parallele Lese-Aufrufe limitieren

	for _, id := range ids {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(contentID uint) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if s.processOne(ctx, contentID) {
				mu.Lock()
				stored++
				mu.Unlock()
			}
		}(id)
	}

	wg.Wait()
	s.Logger.Info("Lese-Sweep abgeschlossen", zap.Int("readings_stored", stored))
	return stored, nil
}

// processOne liest einen einzelnen Content-Eintrag und legt das Reading ab.
func (s *ReadingService) processOne(ctx context.Context, contentID uint) bool {
	log := s.Logger.With(zap.Uint("text_content_id", contentID))

	content, err := s.Content.GetContent(ctx, contentID)
	if err != nil {
		log.Warn("Content nicht ladbar", zap.Error(err))
		return false
	}
	raw, err := store.ContentText(content.Content)
	if err != nil {
		log.Warn("Content-Payload nicht dekomprimierbar", zap.Error(err))
		return false
	}
	text := extractText(raw, content.Format)
	if text == "" {
		log.Debug("Kein extrahierbarer Text, Eintrag wird übersprungen.")
		return false
	}

	payload, err := s.Reader.ProcessText(ctx, text)
	if err != nil {
		log.Warn("Lese-Service-Aufruf fehlgeschlagen", zap.Error(err))
		return false
	}

	if err := s.Readings.PutReading(ctx, contentID, s.Reader.Version(), payload); err != nil {
		if errors.Is(err, store.ErrDuplicateReading) {
			// Überlappender Sweep hat den Eintrag schon geschrieben.
			log.Debug("Reading existiert bereits.", zap.String("version", s.Reader.Version()))
			return false
		}
		log.Error("Reading konnte nicht gespeichert werden", zap.Error(err))
		return false
	}
	return true
}

// readerNameFromVersion schneidet den Reader-Namen aus einer Versions-Kennung
// wie "reach-1.6.1".
func readerNameFromVersion(version string) string {
	if i := strings.IndexByte(version, '-'); i > 0 {
		return version[:i]
	}
	return version
}
