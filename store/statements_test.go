package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"litbase/models"
)

func agentRowsFor(t *testing.T, db *StmtStore, stmtID uint) []models.AgentRow {
	t.Helper()
	var rows []models.AgentRow
	require.NoError(t, db.DB.Where("stmt_id = ?", stmtID).Order("id asc").Find(&rows).Error)
	return rows
}

func TestInsertStatementsOrderedRoles(t *testing.T) {
	stmts := NewStmtStore(newTestDB(t), zap.NewNop())
	ctx := context.Background()

	batchID, err := stmts.CreateBatch(ctx, "reach")
	require.NoError(t, err)

	ids, err := stmts.InsertStatements(ctx, batchID, []*models.Statement{{
		Type: "Phosphorylation",
		Agents: []*models.Agent{
			{Name: "MAP2K1", DBRefs: map[string]string{"HGNC": "6840"}},
			{Name: "MAPK1", DBRefs: map[string]string{"HGNC": "6871"}},
		},
	}})
	require.NoError(t, err)
	require.Len(t, ids, 1)

	rows := agentRowsFor(t, stmts, ids[0])
	require.Len(t, rows, 2)
	assert.Equal(t, models.RoleSubject, rows[0].Role)
	assert.Equal(t, "6840", rows[0].DBID)
	assert.Equal(t, models.RoleObject, rows[1].Role)
	assert.Equal(t, "6871", rows[1].DBID)
}

func TestInsertStatementsUnorderedRoles(t *testing.T) {
	stmts := NewStmtStore(newTestDB(t), zap.NewNop())
	ctx := context.Background()

	batchID, err := stmts.CreateBatch(ctx, "reach")
	require.NoError(t, err)

	// Komplexbildung: drei Teilnehmer sind erlaubt, alle mit Rolle OTHER.
	ids, err := stmts.InsertStatements(ctx, batchID, []*models.Statement{{
		Type: "Complex",
		Agents: []*models.Agent{
			{Name: "A", DBRefs: map[string]string{"HGNC": "1"}},
			{Name: "B", DBRefs: map[string]string{"HGNC": "2"}},
			{Name: "C", DBRefs: map[string]string{"HGNC": "3"}},
		},
	}})
	require.NoError(t, err)
	require.Len(t, ids, 1)

	rows := agentRowsFor(t, stmts, ids[0])
	require.Len(t, rows, 3)
	for _, row := range rows {
		assert.Equal(t, models.RoleOther, row.Role)
	}
}

func TestInsertStatementsNilAgentKeepsPosition(t *testing.T) {
	stmts := NewStmtStore(newTestDB(t), zap.NewNop())
	ctx := context.Background()

	batchID, err := stmts.CreateBatch(ctx, "reach")
	require.NoError(t, err)

	// Ein unbesetztes Subjekt verschiebt das Objekt nicht auf Position 0.
	ids, err := stmts.InsertStatements(ctx, batchID, []*models.Statement{{
		Type: "Phosphorylation",
		Agents: []*models.Agent{
			nil,
			{Name: "MAPK1", DBRefs: map[string]string{"HGNC": "6871"}},
		},
	}})
	require.NoError(t, err)
	require.Len(t, ids, 1)

	rows := agentRowsFor(t, stmts, ids[0])
	require.Len(t, rows, 1)
	assert.Equal(t, models.RoleObject, rows[0].Role)
}

func TestInsertStatementsUngroundedAgentNoRows(t *testing.T) {
	stmts := NewStmtStore(newTestDB(t), zap.NewNop())
	ctx := context.Background()

	batchID, err := stmts.CreateBatch(ctx, "reach")
	require.NoError(t, err)

	ids, err := stmts.InsertStatements(ctx, batchID, []*models.Statement{{
		Type: "Phosphorylation",
		Agents: []*models.Agent{
			{Name: "MAP2K1", DBRefs: map[string]string{"HGNC": "6840"}},
			{Name: "irgendwas"},
		},
	}})
	require.NoError(t, err)
	require.Len(t, ids, 1)

	rows := agentRowsFor(t, stmts, ids[0])
	require.Len(t, rows, 1)
	assert.Equal(t, models.RoleSubject, rows[0].Role)
}

func TestInsertStatementsUnhandledRoleSkipsStatement(t *testing.T) {
	stmts := NewStmtStore(newTestDB(t), zap.NewNop())
	ctx := context.Background()

	batchID, err := stmts.CreateBatch(ctx, "reach")
	require.NoError(t, err)

	// Drei Teilnehmer in einer geordneten Form sind nicht abbildbar – das
	// Statement wird übersprungen, auch wenn der dritte ungegroundet ist.
	// Das nächste Statement des Batches läuft trotzdem durch.
	ids, err := stmts.InsertStatements(ctx, batchID, []*models.Statement{
		{
			Type: "Phosphorylation",
			Agents: []*models.Agent{
				{Name: "A", DBRefs: map[string]string{"HGNC": "1"}},
				{Name: "B", DBRefs: map[string]string{"HGNC": "2"}},
				{Name: "C"},
			},
		},
		{
			Type: "Activation",
			Agents: []*models.Agent{
				{Name: "A", DBRefs: map[string]string{"HGNC": "1"}},
				{Name: "B", DBRefs: map[string]string{"HGNC": "2"}},
			},
		},
	})
	require.NoError(t, err)
	require.Len(t, ids, 1)

	var count int64
	stmts.DB.Model(&models.StatementRow{}).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestInsertStatementsDuplicateUUIDSkipped(t *testing.T) {
	stmts := NewStmtStore(newTestDB(t), zap.NewNop())
	ctx := context.Background()

	batchID, err := stmts.CreateBatch(ctx, "reach")
	require.NoError(t, err)

	mk := func() *models.Statement {
		return &models.Statement{
			UUID: "dead-beef",
			Type: "Activation",
			Agents: []*models.Agent{
				{Name: "A", DBRefs: map[string]string{"HGNC": "1"}},
			},
		}
	}
	ids, err := stmts.InsertStatements(ctx, batchID, []*models.Statement{mk(), mk()})
	require.NoError(t, err)
	assert.Len(t, ids, 1)
}

func TestSelectStatementsByAgent(t *testing.T) {
	stmts := NewStmtStore(newTestDB(t), zap.NewNop())
	ctx := context.Background()

	batchID, err := stmts.CreateBatch(ctx, "reach")
	require.NoError(t, err)

	_, err = stmts.InsertStatements(ctx, batchID, []*models.Statement{
		{
			Type: "Phosphorylation",
			Agents: []*models.Agent{
				{Name: "MAP2K1", DBRefs: map[string]string{"HGNC": "6840"}},
				{Name: "MAPK1", DBRefs: map[string]string{"HGNC": "6871"}},
			},
			Evidence: []models.Evidence{{PMID: "12345", Text: "MEK phosphoryliert ERK."}},
		},
		{
			Type: "Activation",
			Agents: []*models.Agent{
				{Name: "TP53", DBRefs: map[string]string{"HGNC": "11998"}},
				{Name: "MDM2", DBRefs: map[string]string{"HGNC": "6973"}},
			},
		},
	})
	require.NoError(t, err)

	results, err := stmts.SelectStatementsByAgent(ctx, "HGNC", "6871")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Phosphorylation", results[0].Type)
	require.Len(t, results[0].Evidence, 1)
	assert.Equal(t, "12345", results[0].Evidence[0].PMID)

	none, err := stmts.SelectStatementsByAgent(ctx, "HGNC", "0000")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSelectStatementsByAgentSkipsBrokenPayload(t *testing.T) {
	stmts := NewStmtStore(newTestDB(t), zap.NewNop())
	ctx := context.Background()

	batchID, err := stmts.CreateBatch(ctx, "reach")
	require.NoError(t, err)

	row := models.StatementRow{
		UUID:     "broken",
		DBInfoID: batchID,
		Type:     "Activation",
		JSON:     []byte("{kein json"),
	}
	require.NoError(t, stmts.DB.Create(&row).Error)
	require.NoError(t, stmts.DB.Create(&models.AgentRow{
		StatementID: row.ID, DBName: "HGNC", DBID: "1", Role: models.RoleSubject,
	}).Error)

	results, err := stmts.SelectStatementsByAgent(ctx, "HGNC", "1")
	require.NoError(t, err)
	assert.Empty(t, results)
}
