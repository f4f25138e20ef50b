package pubmed

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"litbase/config"
)

var httpClient = &http.Client{Timeout: 30 * time.Second}

// ErrUnavailable: die PubMed-API hat kein verwertbares Ergebnis geliefert
// (Netzwerk-, Status- oder Parse-Fehler, oder schlicht kein Abstract).
// Aufrufer behandeln das als "kein Text", nie als fatalen Fehler – der
// umschlossene Grund bleibt für die Diagnose erhalten.
var ErrUnavailable = errors.New("pubmed unavailable")

// Client kapselt die Interaktion mit den NCBI E-Utilities.
type Client struct {
	Config *config.Config
	Logger *zap.Logger
}

// NewClient erstellt einen neuen PubMed-Client.
func NewClient(cfg *config.Config, logger *zap.Logger) *Client {
	return &Client{Config: cfg, Logger: logger}
}

// Name gibt den Namen des Providers zurück.
func (c *Client) Name() string {
	return "pubmed"
}

// GetIDs führt eine ESearch-Abfrage durch und gibt eine Liste von PMIDs
// zurück. truncated ist true, wenn die wahre Treffer-Anzahl über dem
// Ergebnis-Cap liegt – das ist eine Warnung an den Aufrufer, kein Fehler.
func (c *Client) GetIDs(ctx context.Context, term string) (ids []string, truncated bool, err error) {
	log := c.Logger.With(zap.String("term", term))

	searchURL := fmt.Sprintf("%s/esearch.fcgi?db=pubmed&term=%s&retmode=json&retmax=%d",
		c.Config.PubMedBaseURL, url.QueryEscape(term), c.Config.PubMedRetMax)
	if c.Config.PubMedAPIKey != "" {
		searchURL += "&api_key=" + c.Config.PubMedAPIKey
	}
	log.Debug("Rufe ESearch-URL auf", zap.String("url", searchURL))

	var esearchResp ESearchResponse
	if err := c.getJSON(ctx, searchURL, &esearchResp); err != nil {
		return nil, false, err
	}

	ids = esearchResp.ESearchResult.IdList
	count, convErr := strconv.Atoi(esearchResp.ESearchResult.Count)
	if convErr == nil && count > len(ids) {
		truncated = true
		log.Warn("Nicht alle IDs abgerufen, Ergebnis am Cap abgeschnitten",
			zap.Int("count", count), zap.Int("retmax", c.Config.PubMedRetMax))
	}
	return ids, truncated, nil
}

// GetAbstract holt den zusammengesetzten Abstract-Text für eine PMID.
// Jede Art von Fehlschlag wird als ErrUnavailable gemeldet.
func (c *Client) GetAbstract(ctx context.Context, pmid string) (string, error) {
	efetchURL := fmt.Sprintf("%s/efetch.fcgi?db=pubmed&id=%s&retmode=xml&rettype=abstract",
		c.Config.PubMedBaseURL, url.QueryEscape(pmid))
	if c.Config.PubMedAPIKey != "" {
		efetchURL += "&api_key=" + c.Config.PubMedAPIKey
	}
	c.Logger.Debug("Rufe EFetch-URL für Abstract auf", zap.String("url", efetchURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, efetchURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: efetch status %d", ErrUnavailable, resp.StatusCode)
	}

	var articleSet PubmedArticleSet
	if err := xml.NewDecoder(resp.Body).Decode(&articleSet); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(articleSet.PubmedArticle) == 0 {
		return "", fmt.Errorf("%w: kein PubmedArticle für PMID %s", ErrUnavailable, pmid)
	}

	parts := articleSet.PubmedArticle[0].MedlineCitation.Article.Abstract.Text
	abstract := strings.TrimSpace(strings.Join(parts, " "))
	if abstract == "" {
		return "", fmt.Errorf("%w: kein Abstract für PMID %s", ErrUnavailable, pmid)
	}
	return abstract, nil
}

// getJSON führt einen GET aus und dekodiert die JSON-Antwort.
func (c *Client) getJSON(ctx context.Context, rawURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
