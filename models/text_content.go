package models

import "time"

// Text-Typen eines Content-Eintrags.
const (
	TextTypeAbstract = "abstract"
	TextTypeFullText = "fulltext"
)

// Formate, in denen ein Payload vorliegen kann.
const (
	FormatXML  = "xml"
	FormatText = "text"
)

// TextContent speichert einen komprimierten Text-Payload für einen TextRef.
// Pro (text_ref_id, source, format) existiert höchstens eine Zeile; der Payload
// ist nach dem Speichern unveränderlich und wird nur durch neue Zeilen ergänzt.
type TextContent struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	TextRefID uint    `json:"text_ref_id" gorm:"not null;uniqueIndex:idx_text_content_ref_src_fmt"`
	TextRef   TextRef `json:"-" gorm:"foreignKey:TextRefID;constraint:OnDelete:RESTRICT"`

	Source   string `json:"source" gorm:"not null;uniqueIndex:idx_text_content_ref_src_fmt"`   // z.B. "pmc_oa", "elsevier"
	Format   string `json:"format" gorm:"not null;uniqueIndex:idx_text_content_ref_src_fmt"`   // z.B. "xml", "text"
	TextType string `json:"text_type" gorm:"not null;index"`                                   // "abstract" oder "fulltext"
	Content  []byte `json:"-" gorm:"not null"`                                                 // zlib-komprimiert
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (TextContent) TableName() string {
	return "text_content"
}
