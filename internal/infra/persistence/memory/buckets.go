package memory

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Buckets lists the snapshot partitions durable stores persist, in order.
var Buckets = []string{"brains", "episodes"}

// EncodeBucket serializes one partition of the snapshot.
func (s Snapshot) EncodeBucket(bucket string) ([]byte, error) {
	switch bucket {
	case "brains":
		return json.Marshal(s.Brains)
	case "episodes":
		return json.Marshal(s.Episodes)
	}
	return nil, fmt.Errorf("unknown bucket %q", bucket)
}

// DecodeBucket restores one partition of the snapshot. Unknown buckets are
// ignored so older databases keep loading.
func (s *Snapshot) DecodeBucket(bucket string, payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	var target any
	switch bucket {
	case "brains":
		target = &s.Brains
	case "episodes":
		target = &s.Episodes
	default:
		return nil
	}
	if err := json.Unmarshal(payload, target); err != nil {
		return fmt.Errorf("decode %s: %w", bucket, err)
	}
	return nil
}

// BucketTracker remembers the last payload written per bucket so durable
// stores only rewrite partitions that changed. Brains rarely change while
// episodes change on every recorded step. Not safe for concurrent use.
type BucketTracker struct {
	written map[string][]byte
}

// Changed encodes every bucket of s and returns those that differ from the
// last committed payload.
func (t *BucketTracker) Changed(s Snapshot) (map[string][]byte, error) {
	out := make(map[string][]byte)
	for _, bucket := range Buckets {
		data, err := s.EncodeBucket(bucket)
		if err != nil {
			return nil, err
		}
		if prev, ok := t.written[bucket]; ok && bytes.Equal(prev, data) {
			continue
		}
		out[bucket] = data
	}
	return out, nil
}

// Commit records payloads as written; call it after the durable write
// succeeded.
func (t *BucketTracker) Commit(payloads map[string][]byte) {
	if t.written == nil {
		t.written = make(map[string][]byte, len(Buckets))
	}
	for bucket, data := range payloads {
		t.written[bucket] = data
	}
}
