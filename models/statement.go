package models

import (
	"time"

	"gorm.io/datatypes"
)

// DBInfo ist die Provenienz-Gruppe für eine Menge ingestierter Statements,
// z.B. "Import aus Quelle X zum Zeitpunkt T".
type DBInfo struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	DBName    string    `json:"db_name" gorm:"not null;index"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (DBInfo) TableName() string {
	return "db_info"
}

// StatementRow ist die persistierte Form einer extrahierten Wissensaussage.
// Der vollständige serialisierte Claim liegt als JSON-Payload in der Zeile;
// Zeilen sind nach dem Einfügen unveränderlich.
type StatementRow struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	UUID string `json:"uuid" gorm:"column:uuid;uniqueIndex;not null"`

	DBInfoID uint   `json:"db_info_id" gorm:"column:db_ref;index"`
	DBInfo   DBInfo `json:"-" gorm:"foreignKey:DBInfoID;constraint:OnDelete:RESTRICT"`

	Type string         `json:"type" gorm:"not null;index"`
	JSON datatypes.JSON `json:"json" gorm:"not null"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (StatementRow) TableName() string {
	return "statements"
}

// AgentRow ist eine rollen-markierte Identifier-Referenz eines Statement-Teilnehmers.
// Teilnehmer ohne externe Identifier erzeugen keine Zeilen.
type AgentRow struct {
	ID uint `json:"id" gorm:"primaryKey"`

	StatementID uint         `json:"stmt_id" gorm:"column:stmt_id;not null;index"`
	Statement   StatementRow `json:"-" gorm:"foreignKey:StatementID;constraint:OnDelete:RESTRICT"`

	DBName string `json:"db_name" gorm:"not null;index:idx_agents_db_ref"`
	DBID   string `json:"db_id" gorm:"not null;index:idx_agents_db_ref"`
	Role   string `json:"role" gorm:"not null"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (AgentRow) TableName() string {
	return "agents"
}
