package models

// Rollen, die ein Agent innerhalb eines Statements einnehmen kann.
const (
	RoleSubject = "SUBJECT"
	RoleObject  = "OBJECT"
	RoleOther   = "OTHER"
)

// RolePolicy legt fest, wie Teilnehmer-Positionen eines Statements auf Rollen
// abgebildet werden.
type RolePolicy int

const (
	// RolesOrderedBinary: Position 0 ist SUBJECT, Position 1 ist OBJECT.
	RolesOrderedBinary RolePolicy = iota
	// RolesUnordered: alle Teilnehmer bekommen die Rolle OTHER.
	RolesUnordered
)

// unorderedTypes enthält die Statement-Arten ohne geordnete Teilnehmer
// (Komplexbildung, Selbst-Modifikation, ActiveForm). Eine neue Art wird hier
// eingetragen, nicht in einer Verzweigung.
var unorderedTypes = map[string]struct{}{
	"Complex":              {},
	"SelfModification":     {},
	"Autophosphorylation":  {},
	"Transphosphorylation": {},
	"ActiveForm":           {},
}

// RolePolicyFor gibt die Rollen-Zuordnung für eine Statement-Art zurück.
func RolePolicyFor(stmtType string) RolePolicy {
	if _, ok := unorderedTypes[stmtType]; ok {
		return RolesUnordered
	}
	return RolesOrderedBinary
}

// Agent ist ein Teilnehmer eines Statements. DBRefs bildet externe Namespaces
// (z.B. "HGNC", "UP", "TEXT") auf IDs innerhalb des Namespace ab.
type Agent struct {
	Name   string            `json:"name"`
	DBRefs map[string]string `json:"db_refs,omitempty"`
}

// Evidence ist die Provenienz einer einzelnen Aussage: externe Identifier des
// Quelltexts plus optional der wörtliche Evidenz-Satz.
type Evidence struct {
	PMID        string                 `json:"pmid,omitempty"`
	TextRefs    map[string]string      `json:"text_refs,omitempty"` // Schlüssel: PMID, PMCID, DOI, PII, URL, MANUSCRIPT_ID
	Text        string                 `json:"text,omitempty"`
	SourceAPI   string                 `json:"source_api,omitempty"`
	Annotations map[string]interface{} `json:"annotations,omitempty"`
}

// Statement ist der Domänen-Wert einer extrahierten Wissensaussage, wie er
// serialisiert in der statements-Tabelle liegt. Nil-Einträge in Agents sind
// erlaubt und stehen für eine unbesetzte Teilnehmer-Position.
type Statement struct {
	UUID     string     `json:"uuid"`
	Type     string     `json:"type"`
	Agents   []*Agent   `json:"agents"`
	Evidence []Evidence `json:"evidence,omitempty"`
}
