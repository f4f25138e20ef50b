package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"litbase/config"
	"litbase/disambig"
	"litbase/models"
	"litbase/store"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.TextRef{}, &models.TextContent{}, &models.Reading{},
		&models.DBInfo{}, &models.StatementRow{}, &models.AgentRow{}))
	return db
}

func strPtr(s string) *string {
	return &s
}

// fakeAbstracts steht für die Literatur-API in den Tests.
type fakeAbstracts struct {
	text   string
	err    error
	called bool
}

func (f *fakeAbstracts) GetAbstract(ctx context.Context, pmid string) (string, error) {
	f.called = true
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return f.text, f.err
}

func (f *fakeAbstracts) Name() string {
	return "fake"
}

func newGroundingFixture(t *testing.T, abstracts *fakeAbstracts, dis *disambig.Client) (*GroundingService, *store.RefStore, *store.ContentStore) {
	t.Helper()
	db := newTestDB(t)
	refs := store.NewRefStore(db, zap.NewNop())
	content := store.NewContentStore(db, zap.NewNop())
	cfg := &config.Config{PubMedTimeoutSeconds: 2}
	svc := NewGroundingService(cfg, refs, content, abstracts, dis, zap.NewNop())
	return svc, refs, content
}

func TestGetTextPrefersStoredFulltext(t *testing.T) {
	fake := &fakeAbstracts{text: "netzwerk-abstract"}
	svc, refs, content := newGroundingFixture(t, fake, nil)
	ctx := context.Background()

	refID, err := refs.UpsertRef(ctx, store.RefIdentifiers{PMID: strPtr("111")})
	require.NoError(t, err)
	_, err = content.PutContent(ctx, refID, "pubmed", models.FormatText, models.TextTypeAbstract, "gespeichertes abstract")
	require.NoError(t, err)
	_, err = content.PutContent(ctx, refID, "pmc_oa", models.FormatXML, models.TextTypeFullText,
		"<article><p>gespeicherter</p><p>volltext</p></article>")
	require.NoError(t, err)

	text, tier := svc.GetTextForGrounding(ctx, models.Evidence{PMID: "111", Text: "der satz"})
	assert.Equal(t, TierFullText, tier)
	assert.Equal(t, "gespeicherter volltext", text)
	assert.False(t, fake.called)
}

func TestGetTextFallsBackToStoredAbstract(t *testing.T) {
	fake := &fakeAbstracts{text: "netzwerk-abstract"}
	svc, refs, content := newGroundingFixture(t, fake, nil)
	ctx := context.Background()

	refID, err := refs.UpsertRef(ctx, store.RefIdentifiers{PMID: strPtr("111")})
	require.NoError(t, err)
	_, err = content.PutContent(ctx, refID, "pubmed", models.FormatText, models.TextTypeAbstract, "gespeichertes abstract")
	require.NoError(t, err)

	text, tier := svc.GetTextForGrounding(ctx, models.Evidence{PMID: "111"})
	assert.Equal(t, TierAbstract, tier)
	assert.Equal(t, "gespeichertes abstract", text)
	assert.False(t, fake.called)
}

func TestGetTextFallsBackToNetworkedAbstract(t *testing.T) {
	fake := &fakeAbstracts{text: "netzwerk-abstract"}
	svc, _, _ := newGroundingFixture(t, fake, nil)

	text, tier := svc.GetTextForGrounding(context.Background(), models.Evidence{PMID: "111", Text: "der satz"})
	assert.Equal(t, TierPubMed, tier)
	assert.Equal(t, "netzwerk-abstract", text)
}

func TestGetTextNetworkedTierWithoutConfiguredTimeout(t *testing.T) {
	db := newTestDB(t)
	refs := store.NewRefStore(db, zap.NewNop())
	content := store.NewContentStore(db, zap.NewNop())
	fake := &fakeAbstracts{text: "netzwerk-abstract"}

	// Ein Null-Timeout in der Konfiguration darf die Netzwerk-Stufe nicht
	// über einen sofort abgelaufenen Kontext stilllegen.
	svc := NewGroundingService(&config.Config{}, refs, content, fake, nil, zap.NewNop())

	text, tier := svc.GetTextForGrounding(context.Background(), models.Evidence{PMID: "111"})
	assert.Equal(t, TierPubMed, tier)
	assert.Equal(t, "netzwerk-abstract", text)
}

func TestGetTextNoNetworkWithoutPmid(t *testing.T) {
	fake := &fakeAbstracts{text: "netzwerk-abstract"}
	svc, _, _ := newGroundingFixture(t, fake, nil)

	// Ohne PMID wird die Literatur-API gar nicht erst gefragt.
	text, tier := svc.GetTextForGrounding(context.Background(),
		models.Evidence{TextRefs: map[string]string{"DOI": "10.1000/abc"}, Text: "der satz"})
	assert.Equal(t, TierSentence, tier)
	assert.Equal(t, "der satz", text)
	assert.False(t, fake.called)
}

func TestGetTextFallsBackToSentence(t *testing.T) {
	fake := &fakeAbstracts{err: errors.New("timeout")}
	svc, _, _ := newGroundingFixture(t, fake, nil)

	text, tier := svc.GetTextForGrounding(context.Background(), models.Evidence{PMID: "111", Text: "der satz"})
	assert.Equal(t, TierSentence, tier)
	assert.Equal(t, "der satz", text)
	assert.True(t, fake.called)
}

func TestGetTextNothingAvailable(t *testing.T) {
	fake := &fakeAbstracts{err: errors.New("timeout")}
	svc, _, _ := newGroundingFixture(t, fake, nil)

	text, tier := svc.GetTextForGrounding(context.Background(), models.Evidence{PMID: "111"})
	assert.Equal(t, TierNone, tier)
	assert.Empty(t, text)
}

func newDisambigServer(t *testing.T, predictions []disambig.Prediction) *disambig.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/disambiguate", r.URL.Path)
		require.NoError(t, json.NewEncoder(w).Encode(predictions))
	}))
	t.Cleanup(srv.Close)
	return disambig.NewClient(&config.Config{DisambigURL: srv.URL}, zap.NewNop())
}

func TestDisambiguateAgentAppliesGrounding(t *testing.T) {
	dis := newDisambigServer(t, []disambig.Prediction{
		{Grounding: "HGNC:6091", Name: "INSR", Score: 0.98},
		{Grounding: disambig.Ungrounded, Score: 0.02},
	})
	fake := &fakeAbstracts{err: errors.New("offline")}
	svc, _, _ := newGroundingFixture(t, fake, dis)

	stmt := &models.Statement{
		Type: "Activation",
		Agents: []*models.Agent{
			{Name: "IR", DBRefs: map[string]string{"TEXT": "IR"}},
		},
		Evidence: []models.Evidence{{PMID: "111", Text: "IR signaling was increased."}},
	}
	changed := svc.DisambiguateAgent(context.Background(), stmt, stmt.Agents[0])
	require.True(t, changed)

	assert.Equal(t, "INSR", stmt.Agents[0].Name)
	assert.Equal(t, map[string]string{"TEXT": "IR", "HGNC": "6091"}, stmt.Agents[0].DBRefs)
	assert.Contains(t, stmt.Evidence[0].Annotations, "disambig_scores")
}

func TestDisambiguateAgentUngroundedResets(t *testing.T) {
	dis := newDisambigServer(t, []disambig.Prediction{
		{Grounding: disambig.Ungrounded, Score: 0.9},
	})
	fake := &fakeAbstracts{err: errors.New("offline")}
	svc, _, _ := newGroundingFixture(t, fake, dis)

	stmt := &models.Statement{
		Type: "Activation",
		Agents: []*models.Agent{
			{Name: "Falsch", DBRefs: map[string]string{"TEXT": "IR", "HGNC": "6091"}},
		},
		Evidence: []models.Evidence{{Text: "The IR spectra were recorded."}},
	}
	changed := svc.DisambiguateAgent(context.Background(), stmt, stmt.Agents[0])
	require.True(t, changed)

	assert.Equal(t, "IR", stmt.Agents[0].Name)
	assert.Equal(t, map[string]string{"TEXT": "IR"}, stmt.Agents[0].DBRefs)
}

func TestDisambiguateAgentDegradesSilently(t *testing.T) {
	fake := &fakeAbstracts{err: errors.New("offline")}
	// Kein Disambiguierungs-Service konfiguriert.
	dis := disambig.NewClient(&config.Config{}, zap.NewNop())
	svc, _, _ := newGroundingFixture(t, fake, dis)

	stmt := &models.Statement{
		Type:     "Activation",
		Agents:   []*models.Agent{{Name: "IR", DBRefs: map[string]string{"TEXT": "IR"}}},
		Evidence: []models.Evidence{{Text: "IR signaling."}},
	}
	assert.False(t, svc.DisambiguateAgent(context.Background(), stmt, stmt.Agents[0]))

	// Ohne Evidenz gibt es keinen Kontext-Text, also keine Änderung.
	noEvidence := &models.Statement{
		Type:   "Activation",
		Agents: []*models.Agent{{Name: "IR", DBRefs: map[string]string{"TEXT": "IR"}}},
	}
	assert.False(t, svc.DisambiguateAgent(context.Background(), noEvidence, noEvidence.Agents[0]))
}
