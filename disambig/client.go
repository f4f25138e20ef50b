// Package disambig enthält den Client für den Akronym-Disambiguierungs-Service.
package disambig

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"litbase/config"
)

var httpClient = &http.Client{Timeout: 15 * time.Second}

// Ungrounded ist der Grounding-Wert, mit dem das Modell "keine Zuordnung"
// signalisiert.
const Ungrounded = "ungrounded"

// ErrUnavailable: kein Disambiguierungs-Service konfiguriert oder der Aufruf
// hat kein verwertbares Ergebnis geliefert. Aufrufer behandeln das als
// "keine Disambiguierung", nie als Fehler.
var ErrUnavailable = errors.New("disambiguation unavailable")

// Prediction ist ein einzelnes Grounding-Ergebnis des Modells.
type Prediction struct {
	Grounding string  `json:"grounding"` // "NAMESPACE:ID" oder "ungrounded"
	Name      string  `json:"name"`      // kanonischer Name
	Score     float64 `json:"score"`
}

// Client kapselt den Zugriff auf den Disambiguierungs-Service. Die
// Verfügbarkeit wird einmal beim Start aus der Konfiguration entschieden.
type Client struct {
	baseURL string
	Logger  *zap.Logger
}

// NewClient erstellt einen neuen Disambiguierungs-Client. Eine leere
// DISAMBIG_URL bedeutet: Disambiguierung ist nicht verfügbar.
func NewClient(cfg *config.Config, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(cfg.DisambigURL, "/"),
		Logger:  logger,
	}
}

// Available gibt zurück, ob ein Disambiguierungs-Service konfiguriert ist.
func (c *Client) Available() bool {
	return c.baseURL != ""
}

// Disambiguate schickt ein Kurzwort samt Kontext-Passage an den Service und
// gibt die Vorhersagen absteigend nach Score zurück.
func (c *Client) Disambiguate(ctx context.Context, shortform, contextText string) ([]Prediction, error) {
	if !c.Available() {
		return nil, ErrUnavailable
	}

	body, err := json.Marshal(map[string]string{
		"shortform": shortform,
		"text":      contextText,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/disambiguate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var predictions []Prediction
	if err := json.NewDecoder(resp.Body).Decode(&predictions); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(predictions) == 0 {
		return nil, fmt.Errorf("%w: modell kennt %q nicht", ErrUnavailable, shortform)
	}
	return predictions, nil
}
