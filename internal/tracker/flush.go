package tracker

import (
	"encoding/json"

	"github.com/Team-Zarathustra/Zarathustra-Warsaw-sub001/internal/monitoring"
	"github.com/Team-Zarathustra/Zarathustra-Warsaw-sub001/internal/store"
)

// Flush writes a snapshot of every live track to the persistence store.
// A track that fails to marshal is stored without its JSON blob.
func (s *Store) Flush(db *store.Store) error {
	tracks := s.Snapshot()
	records := make([]store.TrackRecord, 0, len(tracks))
	for i := range tracks {
		t := &tracks[i]
		trackJSON, err := json.Marshal(t)
		if err != nil {
			monitoring.Logf("tracker: marshaling track %s: %v", t.ID, err)
			trackJSON = nil
		}
		records = append(records, store.TrackRecord{
			EmitterID:           t.ID,
			FirstDetectionNanos: t.FirstDetection.UnixNano(),
			LastDetectionNanos:  t.LastDetection.UnixNano(),
			Classification:      t.Classification.Label,
			Confidence:          string(t.Confidence),
			TrackJSON:           trackJSON,
		})
	}
	return db.UpsertTracks(records)
}
