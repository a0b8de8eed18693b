// Package status provides the built-in job status record and its JSON codec.
// The store itself is codec-agnostic, anything implementing store.Status and
// store.Serializer plugs in the same way.
package status

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jobvault/jobvault/app/store"
)

// State is the lifecycle state of a job.
type State string

// job lifecycle states
const (
	StateNone      State = "none"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateCanceled  State = "canceled"
)

// Record is a job status record persisted by the store. The record embeds the
// identifier of the request that produced it, which is what the store and the
// reconciliation scan key on. Everything else is payload for the caller.
type Record struct {
	JobID      store.ID  `json:"id"`
	State      State     `json:"state"`
	Message    string    `json:"message,omitempty"`
	Progress   float64   `json:"progress,omitempty"` // 0..1
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at,omitzero"`
	FinishedAt time.Time `json:"finished_at,omitzero"`

	Ephemeral bool `json:"-"` // set to keep the record cache-only, never on disk
}

// RequestID returns the identifier of the request this record belongs to.
func (r *Record) RequestID() store.ID { return r.JobID }

// Persistable reports whether the record may be written to disk.
func (r *Record) Persistable() bool { return !r.Ephemeral }

// JSON is the default serializer, one indented JSON document per status file.
type JSON struct{}

// Write encodes the record to w.
func (JSON) Write(w io.Writer, st store.Status) error {
	rec, ok := st.(*Record)
	if !ok {
		return fmt.Errorf("unsupported status type %T", st)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rec)
}

// Read decodes a record from r.
func (JSON) Read(r io.Reader) (store.Status, error) {
	var rec Record
	if err := json.NewDecoder(r).Decode(&rec); err != nil {
		return nil, fmt.Errorf("can't decode status record: %w", err)
	}
	if rec.JobID == nil {
		return nil, fmt.Errorf("status record without id")
	}
	return &rec, nil
}
