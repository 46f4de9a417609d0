// Package catalog implements the JSON track-description document a
// publisher exposes on a well-known "catalog" track so subscribers can
// discover track names and selection parameters instead of needing
// out-of-band knowledge of what a broadcast publishes.
//
// Grounded on the teacher's buildMoQCatalog
// (internal/distribution/moq_catalog.go), generalized from a
// stream-specific builder into a reusable type with Encode/Decode.
package catalog

import "encoding/json"

// TrackName is the well-known track a Catalog is published under.
const TrackName = "catalog"

// Catalog is the top-level document, following draft-ietf-moq-catalogformat.
type Catalog struct {
	Version                int          `json:"version"`
	StreamingFormat        int          `json:"streamingFormat"`
	StreamingFormatVersion string       `json:"streamingFormatVersion"`
	CommonTrackFields      CommonFields `json:"commonTrackFields"`
	Tracks                 []Track      `json:"tracks"`
}

// CommonFields holds fields shared by every track in the catalog.
type CommonFields struct {
	Namespace string `json:"namespace"`
	Packaging string `json:"packaging"`
}

// Track describes a single track a publisher makes available.
type Track struct {
	Name            string          `json:"name"`
	SelectionParams SelectionParams `json:"selectionParams"`
}

// SelectionParams holds the codec and media parameters a subscriber uses
// to choose between tracks.
type SelectionParams struct {
	Codec         string `json:"codec"`
	Width         int    `json:"width,omitempty"`
	Height        int    `json:"height,omitempty"`
	InitData      string `json:"initData,omitempty"`
	SampleRate    int    `json:"samplerate,omitempty"`
	ChannelConfig string `json:"channelConfig,omitempty"`
}

// New builds an empty catalog for namespace, ready to have tracks appended.
func New(namespace string) Catalog {
	return Catalog{
		Version:                1,
		StreamingFormat:        1,
		StreamingFormatVersion: "0.2",
		CommonTrackFields: CommonFields{
			Namespace: namespace,
			Packaging: "loc",
		},
	}
}

// Encode serializes the catalog as JSON.
func (c Catalog) Encode() ([]byte, error) {
	return json.Marshal(c)
}

// Decode parses a catalog previously produced by Encode.
func Decode(data []byte) (Catalog, error) {
	var c Catalog
	err := json.Unmarshal(data, &c)
	return c, err
}
