package models

import "time"

// Reading speichert das Ergebnis eines maschinellen Lese-Durchlaufs über einen
// Content-Eintrag. Pro (text_content_id, reader_version) existiert höchstens
// eine Zeile – ein wiederholter Lauf derselben Reader-Version ist idempotent.
type Reading struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	TextContentID uint        `json:"text_content_id" gorm:"not null;uniqueIndex:idx_readings_content_version"`
	TextContent   TextContent `json:"-" gorm:"foreignKey:TextContentID;constraint:OnDelete:RESTRICT"`

	ReaderVersion string `json:"reader_version" gorm:"not null;uniqueIndex:idx_readings_content_version"` // z.B. "reach-1.6.1"
	Payload       []byte `json:"-" gorm:"not null"`                                                       // byte-serialisierte Annotationen
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (Reading) TableName() string {
	return "readings"
}
