package store

import "errors"

// Typisierte Fehler der Store-Schicht. Constraint-Verletzungen werden auf
// diese Sentinels abgebildet, damit Aufrufer per errors.Is entscheiden können
// (überspringen, ersetzen, abbrechen).
var (
	// ErrIdentityConflict: ein Identifier würde die Eindeutigkeit gegen einen
	// anderen, bereits existierenden TextRef verletzen.
	ErrIdentityConflict = errors.New("identity conflict")

	// ErrDuplicateContent: für (text_ref, source, format) existiert bereits Content.
	ErrDuplicateContent = errors.New("duplicate content")

	// ErrDuplicateReading: für (text_content, reader_version) existiert bereits ein Reading.
	ErrDuplicateReading = errors.New("duplicate reading")

	// ErrUnhandledRole: die Teilnehmer-Anzahl passt nicht zur Rollen-Zuordnung der Statement-Art.
	ErrUnhandledRole = errors.New("unhandled agent role")

	// ErrRefNotFound: kein TextRef für die angefragten Identifier.
	ErrRefNotFound = errors.New("text ref not found")

	// ErrNoIdentifiers: ein Aufruf ohne jeglichen Identifier ist nicht auflösbar.
	ErrNoIdentifiers = errors.New("no identifiers given")
)
