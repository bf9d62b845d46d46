package domain

import (
	"fmt"
	"time"
)

// CreativePiece is one channel-specific creative artifact attached to a
// campaign. Exactly one piece may exist per (campaign, channel); APP pieces
// carry one image per commercial space.
type CreativePiece struct {
	ID         string  `json:"id" db:"id"`
	CampaignID string  `json:"campaign_id" db:"campaign_id"`
	PieceType  Channel `json:"piece_type" db:"piece_type"`

	// SMS / PUSH inline content
	Title string `json:"title,omitempty" db:"title"`
	Body  string `json:"body,omitempty" db:"body"`

	// EMAIL artifact reference
	HTMLObjectKey string `json:"html_object_key,omitempty" db:"html_object_key"`

	// APP: commercial space → image object key
	ImageObjectKeys map[string]string `json:"image_object_keys,omitempty" db:"image_object_keys"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Validate enforces that the piece carries exactly the shape for its type.
func (p *CreativePiece) Validate() error {
	switch p.PieceType {
	case ChannelSMS:
		if p.Body == "" {
			return fmt.Errorf("SMS piece requires body")
		}
		if p.Title != "" || p.HTMLObjectKey != "" || len(p.ImageObjectKeys) > 0 {
			return fmt.Errorf("SMS piece carries only body")
		}
	case ChannelPush:
		if p.Title == "" || p.Body == "" {
			return fmt.Errorf("PUSH piece requires title and body")
		}
		if p.HTMLObjectKey != "" || len(p.ImageObjectKeys) > 0 {
			return fmt.Errorf("PUSH piece carries only title and body")
		}
	case ChannelEmail:
		if p.HTMLObjectKey == "" {
			return fmt.Errorf("EMAIL piece requires html_object_key")
		}
		if p.Title != "" || p.Body != "" || len(p.ImageObjectKeys) > 0 {
			return fmt.Errorf("EMAIL piece carries only html_object_key")
		}
	case ChannelApp:
		if len(p.ImageObjectKeys) == 0 {
			return fmt.Errorf("APP piece requires at least one commercial space image")
		}
		if p.Title != "" || p.Body != "" || p.HTMLObjectKey != "" {
			return fmt.Errorf("APP piece carries only image_object_keys")
		}
	default:
		return fmt.Errorf("unknown piece_type %q", p.PieceType)
	}
	return nil
}

// ReviewableUnits returns the keys that carry verdicts for this piece: the
// piece itself for SMS/PUSH/EMAIL, one unit per commercial space for APP.
func (p *CreativePiece) ReviewableUnits() []ReviewUnit {
	if p.PieceType != ChannelApp {
		return []ReviewUnit{{CampaignID: p.CampaignID, PieceID: p.ID, Channel: p.PieceType}}
	}
	units := make([]ReviewUnit, 0, len(p.ImageObjectKeys))
	for space := range p.ImageObjectKeys {
		units = append(units, ReviewUnit{
			CampaignID:      p.CampaignID,
			PieceID:         p.ID,
			Channel:         p.PieceType,
			CommercialSpace: space,
		})
	}
	return units
}

// Content is the tagged per-channel content shape. The discriminator is
// Channel; shapes are never guessed structurally.
type Content struct {
	Channel Channel `json:"channel"`

	// SMS
	Body string `json:"body,omitempty"`
	// PUSH adds a title to the body.
	Title string `json:"title,omitempty"`
	// EMAIL: inline HTML and/or a rendered preview image (data URL).
	HTML  string `json:"html,omitempty"`
	Image string `json:"image,omitempty"`
	// APP: base64 data URL plus the targeted commercial space.
	CommercialSpace string `json:"commercial_space,omitempty"`

	// Reference form for EMAIL/APP: the artifact lives in the object store.
	CampaignID string `json:"campaign_id,omitempty"`
	PieceID    string `json:"piece_id,omitempty"`
}
