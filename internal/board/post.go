// Package board provides the record types shared between clients and the
// backing store: posts (the entities on the canvas) and the board itself.
//
// These structures are wire shapes with flat fields and last-write-wins
// semantics. The serialized view blob is opaque to everything except the
// scene codec; the store and the relay server pass it through untouched.
package board

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// PostRecord is a single post as stored and replicated.
//
// ID is assigned once by the creating client and never changes. The storage
// key used by the backing store is independent of ID (see store.Store).
type PostRecord struct {
	// ===== Identity =====
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`
	BoardID string `json:"board_id"`

	// ===== Content =====
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	// ===== Lifecycle =====
	// Removed is the tombstone flag. Once set it is never cleared.
	Removed bool `json:"removed,omitempty"`

	// SerializedView carries the full view-level state of the post
	// (position, color, size, shape) as an opaque JSON blob. The sync
	// core only inspects title, description and position inside it.
	SerializedView string `json:"serialized_view"`

	// ===== Timestamps =====
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks that the record carries the fields every replicated
// post must have. Tombstone records are exempt from the content checks:
// a removal announcement only needs an ID.
func (p *PostRecord) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("id is required")
	}
	if p.Removed {
		return nil
	}
	if p.BoardID == "" {
		return fmt.Errorf("board_id is required")
	}
	if p.Title == "" {
		return fmt.Errorf("title is required")
	}
	if len(p.Title) > 500 {
		return fmt.Errorf("title must be 500 characters or less (got %d)", len(p.Title))
	}
	return nil
}

// SetDefaults applies default values for optional fields.
func (p *PostRecord) SetDefaults() {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now()
	}
}

// NewPostID generates a post ID from the current time and the owner's
// username. IDs are globally unique per owner and sort in creation order.
func NewPostID(owner string) string {
	return NewPostIDAt(time.Now(), owner)
}

// NewPostIDAt is NewPostID with an explicit timestamp, for tests.
func NewPostIDAt(t time.Time, owner string) string {
	return fmt.Sprintf("%d-%s", t.UnixMilli(), owner)
}

// OwnerFromID extracts the owner discriminator from a post ID.
// Returns "" if the ID does not carry one.
func OwnerFromID(id string) string {
	_, owner, ok := strings.Cut(id, "-")
	if !ok {
		return ""
	}
	return owner
}

// PostPatch is a partial post update merged field-by-field by the store.
// Nil fields are left untouched. This store-level merge is distinct from
// the reconciler's full overwrite of each field group.
type PostPatch struct {
	Title          *string `json:"title,omitempty"`
	Description    *string `json:"description,omitempty"`
	SerializedView *string `json:"serialized_view,omitempty"`
	Removed        *bool   `json:"removed,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p *PostPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.SerializedView == nil && p.Removed == nil
}

// ApplyTo merges the patch into a record in place.
func (p *PostPatch) ApplyTo(rec *PostRecord) {
	if p.Title != nil {
		rec.Title = *p.Title
	}
	if p.Description != nil {
		rec.Description = *p.Description
	}
	if p.SerializedView != nil {
		rec.SerializedView = *p.SerializedView
	}
	if p.Removed != nil {
		rec.Removed = *p.Removed
	}
	rec.UpdatedAt = time.Now()
}

// Clone returns a deep copy of the record.
func (p *PostRecord) Clone() *PostRecord {
	c := *p
	return &c
}

// String returns a compact representation for logs.
func (p *PostRecord) String() string {
	b, err := json.Marshal(p)
	if err != nil {
		return p.ID
	}
	return string(b)
}
