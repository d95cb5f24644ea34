package ingestion

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
	"unicode/utf8"
)

// SourceKind tells where discovery material came from.
type SourceKind string

const (
	KindURL  SourceKind = "url"
	KindFile SourceKind = "file"
)

// Metadata describes one ingested discovery source.
type Metadata struct {
	Kind      SourceKind     `json:"kind"`
	Origin    string         `json:"origin"` // URL or file path
	Title     string         `json:"title,omitempty"`
	FetchedAt time.Time      `json:"fetchedAt"`
	Digest    string         `json:"digest"` // sha256 of the normalized text
	Chars     int            `json:"chars"`
	Truncated bool           `json:"truncated,omitempty"`
	Rendered  bool           `json:"rendered,omitempty"` // fetched through the headless browser
	Signals   *MarketSignals `json:"signals,omitempty"`
}

func newMetadata(kind SourceKind, origin, text string) *Metadata {
	sum := sha256.Sum256([]byte(text))
	return &Metadata{
		Kind:      kind,
		Origin:    origin,
		FetchedAt: time.Now().UTC(),
		Digest:    hex.EncodeToString(sum[:]),
		Chars:     utf8.RuneCountInString(text),
	}
}

// Label names the source for logs and joined context: the title when known, else the origin.
func (m *Metadata) Label() string {
	if m.Title != "" {
		return m.Title
	}
	return m.Origin
}
