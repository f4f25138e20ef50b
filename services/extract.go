package services

import (
	"encoding/xml"
	"strings"

	"litbase/models"
)

// extractText holt aus einem dekomprimierten Payload den reinen Text heraus.
// Für XML-Content werden nur die Zeichendaten eingesammelt; liefert der
// Parser nichts Brauchbares, ist das Ergebnis leer und der Aufrufer fällt auf
// die nächste Stufe zurück.
func extractText(raw, format string) string {
	if format != models.FormatXML {
		return strings.TrimSpace(raw)
	}

	dec := xml.NewDecoder(strings.NewReader(raw))
	dec.Strict = false

	var sb strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		if cd, ok := tok.(xml.CharData); ok {
			sb.Write(cd)
			sb.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}
