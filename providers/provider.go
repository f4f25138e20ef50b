package providers

import "context"

// AbstractSource ist das schmale Interface, über das die Kontext-Suche auf
// eine externe Literatur-API zugreift (z.B. PubMed). Fehlschläge werden als
// typisierter Fehler gemeldet und vom Aufrufer als "kein Text" behandelt.
type AbstractSource interface {
	// GetAbstract gibt den zusammengesetzten Abstract-Text für eine PMID zurück.
	GetAbstract(ctx context.Context, pmid string) (string, error)

	// Name gibt den eindeutigen Namen des Providers zurück (z.B. "pubmed").
	Name() string
}
