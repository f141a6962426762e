package domain

import "time"

// Item is one priced line in a room's cost sheet.
type Item struct {
	ID          string  `json:"id"`
	Type        string  `json:"type"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Cost        float64 `json:"cost"`
	URL         string  `json:"url"`
	Note        string  `json:"note"`
	ImagePath   string  `json:"image_path,omitempty"`
}

// ItemFields are the raw text fields of an item as a user or an import file
// supplied them, before sanitizing and cost parsing.
type ItemFields struct {
	Type        string
	Name        string
	Description string
	Cost        string
	URL         string
	Note        string
}

// GeneralCosts are the room-wide costs that are not tied to an item.
type GeneralCosts struct {
	Designer   float64 `json:"designer"`
	Demolition float64 `json:"demolition"`
	Materials  float64 `json:"materials"`
	Labor      float64 `json:"labor"`
}

// Sum returns the total of all four general costs.
func (g GeneralCosts) Sum() float64 {
	return g.Designer + g.Demolition + g.Materials + g.Labor
}

// Value returns the cost stored under one of GeneralCostKeys, or 0 for an
// unknown key.
func (g GeneralCosts) Value(key string) float64 {
	switch key {
	case "designer":
		return g.Designer
	case "demolition":
		return g.Demolition
	case "materials":
		return g.Materials
	case "labor":
		return g.Labor
	}
	return 0
}

// GeneralCostKeys lists the accepted general cost field names in display order.
var GeneralCostKeys = []string{"designer", "demolition", "materials", "labor"}

type Totals struct {
	ItemsTotal   float64 `json:"itemsTotal"`
	GeneralTotal float64 `json:"generalTotal"`
	GrandTotal   float64 `json:"grandTotal"`
}

// Image is an uploaded file attached to an item on add or update.
type Image struct {
	Filename string
	MIMEType string
	Data     []byte
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type ChatMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Snapshot kinds written under a room prefix.
const (
	KindItems  = "items"
	KindChat   = "chat"
	KindSample = "sample"
	KindCosts  = "costs"
)

// Diagnostic is one recorded failure with the operation it happened in.
type Diagnostic struct {
	ID        string         `json:"id"`
	Operation string         `json:"operation"`
	Message   string         `json:"message"`
	Context   map[string]any `json:"context,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
