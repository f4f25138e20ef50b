// Package reach enthält den Client für einen REACH-artigen Lese-Webservice.
package reach

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"litbase/config"
)

var httpClient = &http.Client{Timeout: 120 * time.Second}

// ErrUnavailable: der Lese-Service ist nicht konfiguriert oder hat kein
// verwertbares Ergebnis geliefert.
var ErrUnavailable = errors.New("reading service unavailable")

// Client kapselt den Zugriff auf den Lese-Webservice. Ob der Service
// vorhanden ist, wird einmal beim Start über die Konfiguration entschieden;
// alle Aufrufer prüfen Available statt sich auf Fehler zu verlassen.
type Client struct {
	baseURL string
	version string
	Logger  *zap.Logger
}

// NewClient erstellt einen neuen Lese-Client. Eine leere REACH_URL bedeutet:
// Lesen ist in diesem Deployment nicht verfügbar.
func NewClient(cfg *config.Config, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(cfg.ReachURL, "/"),
		version: cfg.ReachVersion,
		Logger:  logger,
	}
}

// Available gibt zurück, ob ein Lese-Service konfiguriert ist.
func (c *Client) Available() bool {
	return c.baseURL != ""
}

// Version gibt die Reader-Version zurück, unter der Ergebnisse abgelegt werden.
func (c *Client) Version() string {
	return c.version
}

// ProcessText schickt einen Roh-Text an den Lese-Service und gibt den
// Annotations-Payload zurück.
func (c *Client) ProcessText(ctx context.Context, text string) ([]byte, error) {
	return c.post(ctx, "/api/text", "text/plain", []byte(text))
}

// ProcessJSON schickt ein vorbereitetes JSON-Dokument (z.B. NXML-Extrakt) an
// den Lese-Service.
func (c *Client) ProcessJSON(ctx context.Context, doc []byte) ([]byte, error) {
	return c.post(ctx, "/api/json", "application/json", doc)
}

func (c *Client) post(ctx context.Context, path, contentType string, body []byte) ([]byte, error) {
	if !c.Available() {
		return nil, ErrUnavailable
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return payload, nil
}
