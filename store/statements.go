package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"litbase/models"
)

// StmtStore verwaltet extrahierte Statements und ihre Agenten.
type StmtStore struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

// NewStmtStore erstellt einen StmtStore mit injizierter DB-Verbindung.
func NewStmtStore(db *gorm.DB, logger *zap.Logger) *StmtStore {
	return &StmtStore{DB: db, Logger: logger}
}

// CreateBatch legt eine neue Provenienz-Gruppe für einen Statement-Import an.
func (s *StmtStore) CreateBatch(ctx context.Context, sourceName string) (uint, error) {
	info := models.DBInfo{DBName: sourceName}
	if err := s.DB.WithContext(ctx).Create(&info).Error; err != nil {
		return 0, err
	}
	s.Logger.Info("Statement-Batch angelegt",
		zap.Uint("batch_id", info.ID), zap.String("source", sourceName))
	return info.ID, nil
}

// InsertStatements fügt die Statements eines Batches ein und leitet pro
// Statement die Agent-Zeilen ab. Jedes Statement wird in einer eigenen
// Transaktion committed: ein Fehler in der Mitte lässt das bereits
// eingefügte Präfix dauerhaft stehen. Fehlgeschlagene Statements werden
// geloggt und übersprungen, der Rest des Batches läuft weiter.
func (s *StmtStore) InsertStatements(ctx context.Context, batchID uint, stmts []*models.Statement) ([]uint, error) {
	ids := make([]uint, 0, len(stmts))
	for i, stmt := range stmts {
		if stmt.UUID == "" {
			stmt.UUID = uuid.NewString()
		}
		id, err := s.insertOne(ctx, batchID, stmt)
		if err != nil {
			s.Logger.Warn("Statement-Insert fehlgeschlagen, wird übersprungen",
				zap.Int("index", i),
				zap.String("uuid", stmt.UUID),
				zap.String("type", stmt.Type),
				zap.Error(err))
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// insertOne schreibt ein einzelnes Statement samt Agenten in einer Transaktion.
func (s *StmtStore) insertOne(ctx context.Context, batchID uint, stmt *models.Statement) (uint, error) {
	payload, err := json.Marshal(stmt)
	if err != nil {
		return 0, fmt.Errorf("statement-serialisierung fehlgeschlagen: %w", err)
	}

	agents, err := deriveAgents(stmt)
	if err != nil {
		return 0, err
	}

	row := models.StatementRow{
		UUID:     stmt.UUID,
		DBInfoID: batchID,
		Type:     stmt.Type,
		JSON:     payload,
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		for i := range agents {
			agents[i].StatementID = row.ID
		}
		if len(agents) > 0 {
			if err := tx.Create(&agents).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return row.ID, nil
}

// deriveAgents bildet die Teilnehmer eines Statements per Rollen-Tabelle auf
// Agent-Zeilen ab. Nil-Teilnehmer belegen ihre Position, erzeugen aber keine
// Zeilen; Teilnehmer ohne db_refs ebenfalls nicht. Die Rollen-Prüfung kommt
// vor dem db_refs-Filter: eine nicht abgedeckte Form schlägt auch dann fehl,
// wenn der überzählige Teilnehmer ungegroundet ist.
func deriveAgents(stmt *models.Statement) ([]models.AgentRow, error) {
	policy := models.RolePolicyFor(stmt.Type)

	var rows []models.AgentRow
	for idx, ag := range stmt.Agents {
		if ag == nil {
			continue
		}
		var role string
		switch policy {
		case models.RolesUnordered:
			role = models.RoleOther
		default:
			switch idx {
			case 0:
				role = models.RoleSubject
			case 1:
				role = models.RoleObject
			default:
				return nil, fmt.Errorf("%w: type %s has participant at position %d",
					ErrUnhandledRole, stmt.Type, idx)
			}
		}
		if len(ag.DBRefs) == 0 {
			continue
		}
		for dbName, dbID := range ag.DBRefs {
			rows = append(rows, models.AgentRow{
				DBName: dbName,
				DBID:   dbID,
				Role:   role,
			})
		}
	}
	return rows, nil
}

// SelectStatementsByAgent joint agents und statements, filtert auf
// (db_name, db_id) und deserialisiert die JSON-Payloads. Defekte Payloads
// werden geloggt und übersprungen – eine kaputte Zeile bricht niemals die
// ganze Abfrage ab.
func (s *StmtStore) SelectStatementsByAgent(ctx context.Context, dbName, dbID string) ([]*models.Statement, error) {
	var rows []models.StatementRow
	err := s.DB.WithContext(ctx).
		Model(&models.StatementRow{}).
		Distinct("statements.*").
		Joins("JOIN agents ON agents.stmt_id = statements.id").
		Where("agents.db_name = ? AND agents.db_id = ?", dbName, dbID).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	stmts := make([]*models.Statement, 0, len(rows))
	for _, row := range rows {
		var stmt models.Statement
		if err := json.Unmarshal(row.JSON, &stmt); err != nil {
			s.Logger.Warn("Statement-Payload nicht deserialisierbar, Zeile übersprungen",
				zap.Uint("statement_id", row.ID),
				zap.String("uuid", row.UUID),
				zap.Error(err))
			continue
		}
		stmts = append(stmts, &stmt)
	}
	return stmts, nil
}
