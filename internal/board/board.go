package board

import (
	"fmt"
	"time"
)

// Permissions holds board-wide interaction rules.
type Permissions struct {
	// AllowMoveAny permits every participant to move any post.
	// When false, posts are locked for everyone but the board owner tooling.
	AllowMoveAny bool `json:"allow_move_any" yaml:"allow_move_any"`
}

// Placement positions a background image on the canvas.
type Placement struct {
	Left   float64 `json:"left" yaml:"left"`
	Top    float64 `json:"top" yaml:"top"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
	ScaleX float64 `json:"scale_x" yaml:"scale_x"`
	ScaleY float64 `json:"scale_y" yaml:"scale_y"`
}

// IsZero reports whether the placement has never been computed.
func (p Placement) IsZero() bool {
	return p == Placement{}
}

// Background is an optional board background image plus its placement.
type Background struct {
	URL       string    `json:"url" yaml:"url"`
	Placement Placement `json:"placement" yaml:"placement"`
}

// BoardRecord is the replicated board state: a singleton per session,
// replaced whole on each update (board edits are rare and effectively
// single-writer, so no per-field merge is needed).
type BoardRecord struct {
	ID          string      `json:"id" yaml:"id"`
	Name        string      `json:"name" yaml:"name"`
	Permissions Permissions `json:"permissions" yaml:"permissions"`
	Background  *Background `json:"background,omitempty" yaml:"background,omitempty"`
	UpdatedAt   time.Time   `json:"updated_at" yaml:"-"`
}

// Validate checks required board fields.
func (b *BoardRecord) Validate() error {
	if b.ID == "" {
		return fmt.Errorf("id is required")
	}
	return nil
}

// Clone returns a deep copy of the record.
func (b *BoardRecord) Clone() *BoardRecord {
	c := *b
	if b.Background != nil {
		bg := *b.Background
		c.Background = &bg
	}
	return &c
}

// BoardPatch is a partial board update. Nil fields are left untouched.
type BoardPatch struct {
	Name         *string     `json:"name,omitempty"`
	AllowMoveAny *bool       `json:"allow_move_any,omitempty"`
	Background   *Background `json:"background,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p *BoardPatch) IsEmpty() bool {
	return p.Name == nil && p.AllowMoveAny == nil && p.Background == nil
}

// ApplyTo merges the patch into a record in place.
func (p *BoardPatch) ApplyTo(rec *BoardRecord) {
	if p.Name != nil {
		rec.Name = *p.Name
	}
	if p.AllowMoveAny != nil {
		rec.Permissions.AllowMoveAny = *p.AllowMoveAny
	}
	if p.Background != nil {
		bg := *p.Background
		rec.Background = &bg
	}
	rec.UpdatedAt = time.Now()
}
