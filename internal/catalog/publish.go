package catalog

import (
	"fmt"

	"github.com/zsiec/moqt/internal/serve"
)

// Publish creates the well-known catalog track on bcast and writes cat as
// a single Stream-mode object, matching the teacher's writeCatalogObject
// (one uni-stream, one object, then close) but through the serve tree
// instead of writing wire bytes directly.
func Publish(bcast *serve.BroadcastWriter, cat Catalog) error {
	data, err := cat.Encode()
	if err != nil {
		return fmt.Errorf("catalog: encode: %w", err)
	}

	tw, err := bcast.CreateTrack(TrackName)
	if err != nil {
		return fmt.Errorf("catalog: create track: %w", err)
	}

	sw, err := tw.CreateStream()
	if err != nil {
		return fmt.Errorf("catalog: create stream: %w", err)
	}
	if err := sw.Write(data); err != nil {
		return fmt.Errorf("catalog: write: %w", err)
	}
	sw.Close(nil)
	return nil
}
