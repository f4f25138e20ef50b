package models

import (
	"time"
)

// TextRef repräsentiert genau einen Literatur-Eintrag mit seinen externen Identifiern.
// Fehlende Identifier sind NULL (nil), niemals leere Strings – leere Strings würden
// an den Unique-Indizes teilnehmen.
type TextRef struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	PMID         *string `json:"pmid,omitempty" gorm:"column:pmid;uniqueIndex:idx_text_ref_pmid;uniqueIndex:idx_text_ref_pmid_doi"`
	PMCID        *string `json:"pmcid,omitempty" gorm:"column:pmcid;uniqueIndex"`
	DOI          *string `json:"doi,omitempty" gorm:"column:doi;uniqueIndex:idx_text_ref_pmid_doi"`
	PII          *string `json:"pii,omitempty" gorm:"column:pii"`
	URL          *string `json:"url,omitempty" gorm:"uniqueIndex"`
	ManuscriptID *string `json:"manuscript_id,omitempty" gorm:"uniqueIndex"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (TextRef) TableName() string {
	return "text_ref"
}
