package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CampaignStatus enumerates the lifecycle states of a campaign.
type CampaignStatus string

const (
	StatusDraft             CampaignStatus = "draft"
	StatusCreativeStage     CampaignStatus = "creative_stage"
	StatusContentReview     CampaignStatus = "content_review"
	StatusContentAdjustment CampaignStatus = "content_adjustment"
	StatusCampaignBuilding  CampaignStatus = "campaign_building"
	StatusCampaignPublished CampaignStatus = "campaign_published"
)

// AllStatuses lists every campaign status in lifecycle order.
var AllStatuses = []CampaignStatus{
	StatusDraft, StatusCreativeStage, StatusContentReview,
	StatusContentAdjustment, StatusCampaignBuilding, StatusCampaignPublished,
}

// ValidStatus reports whether s is a known campaign status.
func ValidStatus(s CampaignStatus) bool {
	for _, v := range AllStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// ExecutionModel is how a campaign fires: on a calendar or on an event.
type ExecutionModel string

const (
	ExecutionScheduled   ExecutionModel = "scheduled"
	ExecutionEventDriven ExecutionModel = "event_driven"
)

// Channel is a delivery channel for creative pieces.
type Channel string

const (
	ChannelSMS   Channel = "SMS"
	ChannelPush  Channel = "PUSH"
	ChannelEmail Channel = "EMAIL"
	ChannelApp   Channel = "APP"
)

// ValidChannel reports whether c is a known channel.
func ValidChannel(c Channel) bool {
	switch c {
	case ChannelSMS, ChannelPush, ChannelEmail, ChannelApp:
		return true
	}
	return false
}

// Date is a calendar date with no timezone. It marshals as "2006-01-02".
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate parses "2006-01-02".
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

// String formats the date as "2006-01-02".
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// IsZero reports whether the date is unset.
func (d Date) IsZero() bool { return d.Year == 0 && d.Month == 0 && d.Day == 0 }

// Before reports whether d is strictly before other.
func (d Date) Before(other Date) bool {
	if d.Year != other.Year {
		return d.Year < other.Year
	}
	if d.Month != other.Month {
		return d.Month < other.Month
	}
	return d.Day < other.Day
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Decimal2 is a fixed-point decimal with two fractional digits, stored as
// hundredths. Used for estimated impact volumes where float drift would show
// up in reports.
type Decimal2 int64

// ParseDecimal2 parses strings like "1234.56", "1234.5" or "1234".
func ParseDecimal2(s string) (Decimal2, error) {
	s = strings.TrimSpace(s)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	intPart, fracPart, _ := strings.Cut(s, ".")
	if intPart == "" {
		intPart = "0"
	}
	whole, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid decimal %q", s)
	}
	var frac int64
	switch len(fracPart) {
	case 0:
	case 1:
		frac, err = strconv.ParseInt(fracPart, 10, 64)
		frac *= 10
	case 2:
		frac, err = strconv.ParseInt(fracPart, 10, 64)
	default:
		return 0, fmt.Errorf("decimal %q has more than two fractional digits", s)
	}
	if err != nil {
		return 0, fmt.Errorf("invalid decimal %q", s)
	}
	v := whole*100 + frac
	if neg {
		v = -v
	}
	return Decimal2(v), nil
}

// String formats the value with exactly two fractional digits.
func (d Decimal2) String() string {
	v := int64(d)
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// MarshalJSON emits the value as a JSON string to keep the fixed precision.
func (d Decimal2) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts both "1234.56" and 1234.56.
func (d *Decimal2) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, err := ParseDecimal2(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Campaign is a marketing initiative with briefing, audience, schedule and
// one creative piece per channel.
type Campaign struct {
	ID                string         `json:"id" db:"id"`
	Name              string         `json:"name" db:"name"`
	Category          string         `json:"category" db:"category"`
	BusinessObjective string         `json:"business_objective" db:"business_objective"`
	ExpectedResult    string         `json:"expected_result" db:"expected_result"`
	RequestingArea    string         `json:"requesting_area" db:"requesting_area"`
	StartDate         Date           `json:"start_date" db:"start_date"`
	EndDate           Date           `json:"end_date" db:"end_date"`
	Priority          string         `json:"priority" db:"priority"`
	Channels          []Channel      `json:"channels" db:"channels"`
	CommercialSpaces  []string       `json:"commercial_spaces,omitempty" db:"commercial_spaces"`
	TargetAudience    string         `json:"target_audience" db:"target_audience"`
	ExclusionCriteria string         `json:"exclusion_criteria" db:"exclusion_criteria"`
	EstimatedImpact   Decimal2       `json:"estimated_impact_volume" db:"estimated_impact_volume"`
	Tone              string         `json:"tone" db:"tone"`
	ExecutionModel    ExecutionModel `json:"execution_model" db:"execution_model"`
	TriggerEvent      string         `json:"trigger_event,omitempty" db:"trigger_event"`
	RecencyDays       int            `json:"recency_days" db:"recency_days"`
	Status            CampaignStatus `json:"status" db:"status"`
	CreatedBy         string         `json:"created_by" db:"created_by"`
	CreatedAt         time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at" db:"updated_at"`
}

// HasChannel reports whether the campaign targets the given channel.
func (c *Campaign) HasChannel(ch Channel) bool {
	for _, v := range c.Channels {
		if v == ch {
			return true
		}
	}
	return false
}

// Validate enforces the briefing invariants. It returns the first violation;
// the engine surfaces it as a 400 and never coerces.
func (c *Campaign) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(c.Channels) == 0 {
		return fmt.Errorf("at least one channel is required")
	}
	for _, ch := range c.Channels {
		if !ValidChannel(ch) {
			return fmt.Errorf("unknown channel %q", ch)
		}
	}
	if c.StartDate.IsZero() || c.EndDate.IsZero() {
		return fmt.Errorf("start_date and end_date are required")
	}
	if c.EndDate.Before(c.StartDate) {
		return fmt.Errorf("start_date must not be after end_date")
	}
	switch c.ExecutionModel {
	case ExecutionEventDriven:
		if c.TriggerEvent == "" {
			return fmt.Errorf("trigger_event is required for event_driven campaigns")
		}
	case ExecutionScheduled:
		if c.TriggerEvent != "" {
			return fmt.Errorf("trigger_event is only valid for event_driven campaigns")
		}
	default:
		return fmt.Errorf("unknown execution_model %q", c.ExecutionModel)
	}
	if c.HasChannel(ChannelApp) && len(c.CommercialSpaces) == 0 {
		return fmt.Errorf("commercial_spaces is required when the APP channel is selected")
	}
	if !c.HasChannel(ChannelApp) && len(c.CommercialSpaces) > 0 {
		return fmt.Errorf("commercial_spaces is only valid with the APP channel")
	}
	return nil
}

// Comment is free-form campaign discussion; visibility inherits from the campaign.
type Comment struct {
	ID         string    `json:"id" db:"id"`
	CampaignID string    `json:"campaign_id" db:"campaign_id"`
	Author     string    `json:"author" db:"author"`
	Body       string    `json:"body" db:"body"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
