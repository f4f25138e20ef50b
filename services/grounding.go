package services

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"litbase/config"
	"litbase/disambig"
	"litbase/models"
	"litbase/providers"
	"litbase/store"
)

// Stufen der Kontext-Suche, in Versuchsreihenfolge. Der erste Treffer gewinnt.
const (
	TierFullText = "fulltext"
	TierAbstract = "abstract"
	TierPubMed   = "pubmed_abstract"
	TierSentence = "evidence_sentence"
	TierNone     = "none"
)

// GroundingService liefert den bestmöglichen Text zur Provenienz eines
// Statements und wendet optional die Akronym-Disambiguierung auf Agenten an.
type GroundingService struct {
	Refs      *store.RefStore
	Content   *store.ContentStore
	Abstracts providers.AbstractSource
	Disambig  *disambig.Client
	Logger    *zap.Logger

	pubmedTimeout time.Duration
}

// NewGroundingService erstellt einen GroundingService.
func NewGroundingService(cfg *config.Config, refs *store.RefStore, content *store.ContentStore,
	abstracts providers.AbstractSource, dis *disambig.Client, logger *zap.Logger) *GroundingService {
	timeout := time.Duration(cfg.PubMedTimeoutSeconds) * time.Second
	if timeout <= 0 {
		// Ohne Timeout-Angabe wäre der Kontext sofort abgelaufen und die
		// Netzwerk-Stufe stillgelegt.
		timeout = 5 * time.Second
	}
	return &GroundingService{
		Refs:          refs,
		Content:       content,
		Abstracts:     abstracts,
		Disambig:      dis,
		Logger:        logger,
		pubmedTimeout: timeout,
	}
}

// GetTextForGrounding gibt den besten verfügbaren Text zur gegebenen
// Provenienz zurück, zusammen mit der Stufe, die ihn geliefert hat:
// gespeicherter Volltext, gespeichertes Abstract, Abstract per PubMed,
// wörtlicher Evidenz-Satz. Keine Stufe wirft jemals einen Fehler über die
// Fallback-Kette hinaus; liefert nichts Text, ist das Ergebnis ("", "none").
func (g *GroundingService) GetTextForGrounding(ctx context.Context, ev models.Evidence) (string, string) {
	// Stufe 1+2: gespeicherter Content über die Identitäts-Registry
	if text, tier := g.storedText(ctx, ev); text != "" {
		return text, tier
	}

	// Stufe 3: Abstract über die Literatur-API, nur mit PMID
	if pmid := evidencePmid(ev); pmid != "" && g.Abstracts != nil {
		fetchCtx, cancel := context.WithTimeout(ctx, g.pubmedTimeout)
		defer cancel()
		text, err := g.Abstracts.GetAbstract(fetchCtx, pmid)
		if err != nil {
			g.Logger.Debug("Netzwerk-Abstract nicht verfügbar",
				zap.String("pmid", pmid), zap.Error(err))
		} else if strings.TrimSpace(text) != "" {
			return text, TierPubMed
		}
	}

	// Stufe 4: der wörtliche Evidenz-Satz
	if strings.TrimSpace(ev.Text) != "" {
		return ev.Text, TierSentence
	}

	return "", TierNone
}

// storedText versucht die ersten beiden Stufen: Provenienz zu TextRef
// auflösen, dessen Content laden, Volltext vor Abstract bevorzugen.
func (g *GroundingService) storedText(ctx context.Context, ev models.Evidence) (string, string) {
	ref, err := g.Refs.FindRef(ctx, refIdentifiersFromEvidence(ev))
	if err != nil {
		g.Logger.Debug("Provenienz nicht auf TextRef auflösbar", zap.Error(err))
		return "", TierNone
	}
	contents, err := g.Content.ContentsForRef(ctx, ref.ID)
	if err != nil {
		g.Logger.Warn("Content-Abfrage für TextRef fehlgeschlagen",
			zap.Uint("text_ref_id", ref.ID), zap.Error(err))
		return "", TierNone
	}

	if text := g.bestText(contents, models.TextTypeFullText); text != "" {
		return text, TierFullText
	}
	if text := g.bestText(contents, models.TextTypeAbstract); text != "" {
		return text, TierAbstract
	}
	return "", TierNone
}

// bestText gibt den ersten nicht-leeren extrahierten Text des gewünschten
// Text-Typs zurück. Defekte Payloads werden geloggt und übersprungen.
func (g *GroundingService) bestText(contents []models.TextContent, textType string) string {
	for _, c := range contents {
		if c.TextType != textType {
			continue
		}
		raw, err := store.ContentText(c.Content)
		if err != nil {
			g.Logger.Warn("Content-Payload nicht dekomprimierbar, wird übersprungen",
				zap.Uint("text_content_id", c.ID), zap.Error(err))
			continue
		}
		if text := extractText(raw, c.Format); text != "" {
			return text
		}
	}
	return ""
}

// DisambiguateAgent wendet das Disambiguierungs-Modell auf einen Agenten an.
// Der Kontext-Text kommt aus GetTextForGrounding über die Evidenz des
// Statements. Gibt true zurück, wenn das Grounding des Agenten verändert
// wurde. Fehlende Modelle oder fehlender Text degradieren still zu false –
// der Aufrufer behält dann das bisherige Grounding.
func (g *GroundingService) DisambiguateAgent(ctx context.Context, stmt *models.Statement, agent *models.Agent) bool {
	if agent == nil || len(stmt.Evidence) == 0 {
		return false
	}
	if g.Disambig == nil || !g.Disambig.Available() {
		return false
	}
	agentText := agent.DBRefs["TEXT"]
	if agentText == "" {
		return false
	}

	text, tier := g.GetTextForGrounding(ctx, stmt.Evidence[0])
	if text == "" {
		return false
	}
	log := g.Logger.With(zap.String("shortform", agentText), zap.String("tier", tier))

	predictions, err := g.Disambig.Disambiguate(ctx, agentText, text)
	if err != nil {
		log.Debug("Disambiguierung nicht verfügbar", zap.Error(err))
		return false
	}
	top := predictions[0]

	if top.Grounding == disambig.Ungrounded {
		// Explizit entgrounden und den ursprünglichen Text-Namen wiederherstellen.
		agent.Name = agentText
		agent.DBRefs = map[string]string{"TEXT": agentText}
		log.Info("Disambiguierung ergab ungrounded, Grounding entfernt")
		return true
	}

	parts := strings.SplitN(top.Grounding, ":", 2)
	if len(parts) != 2 {
		log.Warn("Unerwartetes Grounding-Format", zap.String("grounding", top.Grounding))
		return false
	}
	agent.DBRefs = map[string]string{"TEXT": agentText, parts[0]: parts[1]}
	agent.Name = top.Name
	log.Info("Agent disambiguiert",
		zap.String("name", top.Name),
		zap.String("grounding", top.Grounding),
		zap.Float64("score", top.Score))

	// Scores in den Evidenz-Annotationen ablegen
	if stmt.Evidence[0].Annotations == nil {
		stmt.Evidence[0].Annotations = map[string]interface{}{}
	}
	stmt.Evidence[0].Annotations["disambig_scores"] = predictions
	return true
}

// refIdentifiersFromEvidence baut den Identifier-Satz für die Auflösung.
// Die pmid-Eigenschaft hat Vorrang vor dem text_refs-Eintrag.
func refIdentifiersFromEvidence(ev models.Evidence) store.RefIdentifiers {
	var ids store.RefIdentifiers
	set := func(dst **string, v string) {
		if strings.TrimSpace(v) != "" {
			val := v
			*dst = &val
		}
	}
	set(&ids.PMID, ev.TextRefs["PMID"])
	set(&ids.PMID, ev.PMID)
	set(&ids.PMCID, ev.TextRefs["PMCID"])
	set(&ids.DOI, ev.TextRefs["DOI"])
	set(&ids.PII, ev.TextRefs["PII"])
	set(&ids.URL, ev.TextRefs["URL"])
	set(&ids.ManuscriptID, ev.TextRefs["MANUSCRIPT_ID"])
	return ids
}

// evidencePmid gibt die PMID der Provenienz zurück, falls vorhanden.
func evidencePmid(ev models.Evidence) string {
	if strings.TrimSpace(ev.PMID) != "" {
		return ev.PMID
	}
	return ev.TextRefs["PMID"]
}
