package store

import (
	"bytes"
	"compress/zlib"
	"io"
)

// zipString komprimiert einen Text-Payload für die Ablage in der Datenbank.
func zipString(text string) ([]byte, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write([]byte(text)); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ContentText dekomprimiert den Payload eines Content-Eintrags.
func ContentText(data []byte) (string, error) {
	return unzipString(data)
}

// unzipString dekomprimiert einen gespeicherten Payload zurück in Text.
func unzipString(data []byte) (string, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
