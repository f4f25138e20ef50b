package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"litbase/models"
)

// RefStore ist die Identitäts-Registry: sie löst externe Identifier auf genau
// einen kanonischen TextRef auf und dedupliziert Neuanlagen.
type RefStore struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

// NewRefStore erstellt einen RefStore mit injizierter DB-Verbindung.
func NewRefStore(db *gorm.DB, logger *zap.Logger) *RefStore {
	return &RefStore{DB: db, Logger: logger}
}

// RefIdentifiers ist ein partieller Identifier-Satz, wie er bei der Ingestion
// ankommt. Nil bedeutet "unbekannt" und nimmt an keiner Prüfung teil.
type RefIdentifiers struct {
	PMID         *string `json:"pmid,omitempty"`
	PMCID        *string `json:"pmcid,omitempty"`
	DOI          *string `json:"doi,omitempty"`
	PII          *string `json:"pii,omitempty"`
	URL          *string `json:"url,omitempty"`
	ManuscriptID *string `json:"manuscript_id,omitempty"`
}

func (ids RefIdentifiers) empty() bool {
	return ids.PMID == nil && ids.PMCID == nil && ids.DOI == nil &&
		ids.PII == nil && ids.URL == nil && ids.ManuscriptID == nil
}

// uniqueConditions baut die OR-Bedingungen über alle einzeln eindeutigen
// Identifier-Felder (pmid, pmcid, url, manuscript_id). DOI und PII sind nicht
// einzeln eindeutig und matchen hier bewusst nicht.
func (ids RefIdentifiers) uniqueConditions() ([]string, []interface{}) {
	var conditions []string
	var args []interface{}
	if ids.PMID != nil {
		conditions = append(conditions, "pmid = ?")
		args = append(args, *ids.PMID)
	}
	if ids.PMCID != nil {
		conditions = append(conditions, "pmcid = ?")
		args = append(args, *ids.PMCID)
	}
	if ids.URL != nil {
		conditions = append(conditions, "url = ?")
		args = append(args, *ids.URL)
	}
	if ids.ManuscriptID != nil {
		conditions = append(conditions, "manuscript_id = ?")
		args = append(args, *ids.ManuscriptID)
	}
	return conditions, args
}

// UpsertRef findet einen existierenden TextRef über beliebige eindeutige
// Identifier oder legt einen neuen an. Identifier sind nach dem Anlegen
// unveränderlich: eine widersprüchliche Wieder-Einreichung wird mit
// ErrIdentityConflict abgelehnt, niemals gemerged.
func (s *RefStore) UpsertRef(ctx context.Context, ids RefIdentifiers) (uint, error) {
	if ids.empty() {
		return 0, ErrNoIdentifiers
	}

	conditions, args := ids.uniqueConditions()
	if len(conditions) > 0 {
		var matches []models.TextRef
		if err := s.DB.WithContext(ctx).
			Where(strings.Join(conditions, " OR "), args...).
			Find(&matches).Error; err != nil {
			return 0, err
		}
		if len(matches) > 1 {
			return 0, fmt.Errorf("%w: identifiers match %d distinct text refs", ErrIdentityConflict, len(matches))
		}
		if len(matches) == 1 {
			existing := matches[0]
			if err := checkConflict(&existing, ids); err != nil {
				return 0, err
			}
			return existing.ID, nil
		}
	}

	ref := models.TextRef{
		PMID:         ids.PMID,
		PMCID:        ids.PMCID,
		DOI:          ids.DOI,
		PII:          ids.PII,
		URL:          ids.URL,
		ManuscriptID: ids.ManuscriptID,
	}
	if err := s.DB.WithContext(ctx).Create(&ref).Error; err != nil {
		// Race mit einem parallelen Insert: der Unique-Index hat entschieden.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return 0, fmt.Errorf("%w: concurrent insert on unique identifier", ErrIdentityConflict)
		}
		return 0, err
	}
	s.Logger.Debug("Neuen TextRef angelegt", zap.Uint("text_ref_id", ref.ID))
	return ref.ID, nil
}

// checkConflict vergleicht jeden eingereichten Identifier mit dem Bestand:
// beidseitig gesetzt und verschieden ist ein Konflikt.
func checkConflict(existing *models.TextRef, ids RefIdentifiers) error {
	pairs := []struct {
		name      string
		submitted *string
		stored    *string
	}{
		{"pmid", ids.PMID, existing.PMID},
		{"pmcid", ids.PMCID, existing.PMCID},
		{"doi", ids.DOI, existing.DOI},
		{"pii", ids.PII, existing.PII},
		{"url", ids.URL, existing.URL},
		{"manuscript_id", ids.ManuscriptID, existing.ManuscriptID},
	}
	for _, p := range pairs {
		if p.submitted != nil && p.stored != nil && *p.submitted != *p.stored {
			return fmt.Errorf("%w: %s %q conflicts with stored %q on text ref %d",
				ErrIdentityConflict, p.name, *p.submitted, *p.stored, existing.ID)
		}
	}
	return nil
}

// FindRefByPmcid gibt die ID des TextRef mit der gegebenen PMCID zurück.
func (s *RefStore) FindRefByPmcid(ctx context.Context, pmcid string) (uint, error) {
	var ref models.TextRef
	err := s.DB.WithContext(ctx).Where("pmcid = ?", pmcid).First(&ref).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, fmt.Errorf("%w: pmcid %s", ErrRefNotFound, pmcid)
		}
		return 0, err
	}
	return ref.ID, nil
}

// FindRefsByPmid löst eine PMID-Liste gesammelt auf. PMIDs ohne TextRef fehlen
// im Ergebnis; das ist kein Fehler.
func (s *RefStore) FindRefsByPmid(ctx context.Context, pmids []string) (map[string]uint, error) {
	result := make(map[string]uint)
	if len(pmids) == 0 {
		return result, nil
	}
	var refs []models.TextRef
	if err := s.DB.WithContext(ctx).Where("pmid IN ?", pmids).Find(&refs).Error; err != nil {
		return nil, err
	}
	for _, ref := range refs {
		if ref.PMID != nil {
			result[*ref.PMID] = ref.ID
		}
	}
	return result, nil
}

// FindRef löst einen partiellen Identifier-Satz auf einen TextRef auf. Anders
// als UpsertRef matchen hier auch DOI und PII – für die Kontext-Suche zählt
// jeder Treffer, nicht nur die eindeutigen Felder.
func (s *RefStore) FindRef(ctx context.Context, ids RefIdentifiers) (*models.TextRef, error) {
	if ids.empty() {
		return nil, ErrNoIdentifiers
	}
	conditions, args := ids.uniqueConditions()
	if ids.DOI != nil {
		conditions = append(conditions, "doi = ?")
		args = append(args, *ids.DOI)
	}
	if ids.PII != nil {
		conditions = append(conditions, "pii = ?")
		args = append(args, *ids.PII)
	}
	var ref models.TextRef
	err := s.DB.WithContext(ctx).
		Where(strings.Join(conditions, " OR "), args...).
		First(&ref).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRefNotFound
		}
		return nil, err
	}
	return &ref, nil
}
