package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Component is one step of a delta. Exactly one field is meaningful:
// Retain skips over existing text, Insert adds text at the cursor, Delete
// removes text at the cursor. All counts are in runes.
type Component struct {
	Retain int    `json:"retain,omitempty"`
	Insert string `json:"insert,omitempty"`
	Delete int    `json:"delete,omitempty"`
}

// Delta describes a content change as an ordered list of components applied
// from the start of the document.
type Delta struct {
	Ops []Component `json:"ops"`
}

// IsNoop reports whether applying the delta can never change any document.
func (d Delta) IsNoop() bool {
	for _, c := range d.Ops {
		if c.Insert != "" || c.Delete > 0 {
			return false
		}
	}
	return true
}

// Validate rejects structurally broken deltas before they reach the relay.
func (d Delta) Validate() error {
	for i, c := range d.Ops {
		if c.Retain < 0 || c.Delete < 0 {
			return fmt.Errorf("delta component %d has a negative count", i)
		}
		set := 0
		if c.Retain > 0 {
			set++
		}
		if c.Insert != "" {
			set++
		}
		if c.Delete > 0 {
			set++
		}
		if set > 1 {
			return fmt.Errorf("delta component %d sets more than one of retain/insert/delete", i)
		}
	}
	return nil
}

// Apply runs the delta against content and returns the resulting text.
// Retains and deletes that run past the end of the document are clamped
// rather than rejected: the relay applies operations against the current
// snapshot without rebasing, so a concurrent edit can legitimately shorten
// the text underneath a just-arrived operation.
func (d Delta) Apply(content string) (string, error) {
	if err := d.Validate(); err != nil {
		return "", err
	}
	src := []rune(content)
	out := make([]rune, 0, len(src)+64)
	pos := 0
	for _, c := range d.Ops {
		switch {
		case c.Retain > 0:
			end := pos + c.Retain
			if end > len(src) {
				end = len(src)
			}
			out = append(out, src[pos:end]...)
			pos = end
		case c.Insert != "":
			out = append(out, []rune(c.Insert)...)
		case c.Delete > 0:
			pos += c.Delete
			if pos > len(src) {
				pos = len(src)
			}
		}
	}
	out = append(out, src[pos:]...)
	return string(out), nil
}

// Operation is one sequenced edit: the unit the relay broadcasts to every
// other session of a document and appends to the operation log. The sequence
// number is assigned by the room, never by the client, and is immutable once
// set.
type Operation struct {
	ID         uint      `gorm:"primaryKey" json:"-"`
	DocumentID uint      `gorm:"uniqueIndex:idx_doc_seq;not null" json:"documentId"`
	Seq        uint64    `gorm:"uniqueIndex:idx_doc_seq;not null" json:"seq"`
	UserID     uint      `gorm:"index;not null" json:"userId"`
	Delta      string    `gorm:"type:text;not null" json:"-"`
	Timestamp  time.Time `gorm:"index;not null" json:"timestamp"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"-"`
}

// SetDelta serializes d into the operation's Delta column.
func (o *Operation) SetDelta(d Delta) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to marshal operation delta: %w", err)
	}
	o.Delta = string(raw)
	return nil
}

// ParseDelta decodes the Delta column back into a Delta value.
func (o *Operation) ParseDelta() (Delta, error) {
	var d Delta
	if o.Delta == "" {
		return d, fmt.Errorf("operation %d/%d has empty delta", o.DocumentID, o.Seq)
	}
	if err := json.Unmarshal([]byte(o.Delta), &d); err != nil {
		return d, fmt.Errorf("failed to unmarshal operation delta: %w", err)
	}
	return d, nil
}
