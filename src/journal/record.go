package journal

import (
	"bytes"
	"time"

	"github.com/ugorji/go/codec"
)

// Record describes one finished bootstrap run.
type Record struct {
	ID           uint64    `json:"id"`
	Stage        string    `json:"stage"`
	Mode         string    `json:"mode"`
	Started      time.Time `json:"started"`
	Finished     time.Time `json:"finished"`
	Success      bool      `json:"success"`
	Error        string    `json:"error,omitempty"`
	Digest       string    `json:"digest,omitempty"`
	ConfigMerged bool      `json:"config_merged"`
}

// Duration ...
func (r *Record) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}

// Marshal - json encoding of Record
func (r *Record) Marshal() ([]byte, error) {
	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(b, jh)

	if err := enc.Encode(r); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// Unmarshal ...
func (r *Record) Unmarshal(data []byte) error {
	b := bytes.NewBuffer(data)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	dec := codec.NewDecoder(b, jh)

	return dec.Decode(r)
}
