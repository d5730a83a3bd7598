package signal

import (
	"fmt"
	"time"
)

// Style is the holding horizon of a signal.
type Style string

const (
	StyleScalp    Style = "scalp"
	StyleDay      Style = "day"
	StyleSwing    Style = "swing"
	StylePosition Style = "position"
)

// Rating is the scanner's recommendation.
type Rating string

const (
	RatingStrongBuy  Rating = "strong-buy"
	RatingBuy        Rating = "buy"
	RatingHold       Rating = "hold"
	RatingSell       Rating = "sell"
	RatingStrongSell Rating = "strong-sell"
)

var (
	styles  = []Style{StyleScalp, StyleDay, StyleSwing, StylePosition}
	ratings = []Rating{RatingStrongBuy, RatingBuy, RatingHold, RatingSell, RatingStrongSell}
)

func (s Style) Valid() bool {
	for _, v := range styles {
		if s == v {
			return true
		}
	}
	return false
}

func (r Rating) Valid() bool {
	for _, v := range ratings {
		if r == v {
			return true
		}
	}
	return false
}

// ParseStyle returns the Style named by s or an error for unknown values.
func ParseStyle(s string) (Style, error) {
	st := Style(s)
	if !st.Valid() {
		return "", fmt.Errorf("%w: unknown style %q", ErrInvalid, s)
	}
	return st, nil
}

// ParseRating returns the Rating named by s or an error for unknown values.
func ParseRating(s string) (Rating, error) {
	r := Rating(s)
	if !r.Valid() {
		return "", fmt.Errorf("%w: unknown rating %q", ErrInvalid, s)
	}
	return r, nil
}

// Signal is one trading recommendation as produced by a scanner.
// Every field is optional; nil fields are stored as NULL.
type Signal struct {
	Symbol      *string  `json:"symbol" db:"symbol" validate:"omitempty,max=32"`
	Timeframe   *string  `json:"timeframe" db:"timeframe" validate:"omitempty,max=16"`
	Style       *Style   `json:"style" db:"style" validate:"omitempty,oneof=scalp day swing position"`
	Rating      *Rating  `json:"rating" db:"rating" validate:"omitempty,oneof=strong-buy buy hold sell strong-sell"`
	Score       *int     `json:"score" db:"score" validate:"omitempty,min=0,max=300"`
	Entry       *float64 `json:"entry" db:"entry"`
	TP1         *float64 `json:"tp1" db:"tp1"`
	TP2         *float64 `json:"tp2" db:"tp2"`
	TP3         *float64 `json:"tp3" db:"tp3"`
	StopLoss    *float64 `json:"stop_loss" db:"stop_loss"`
	RR          *float64 `json:"rr" db:"rr"`
	Resistance  *float64 `json:"resistance" db:"resistance"`
	Support     *float64 `json:"support" db:"support"`
	Setup       *string  `json:"setup" db:"setup"`
	Wave        *string  `json:"wave" db:"wave"`
	Confluence  *int     `json:"confluence" db:"confluence" validate:"omitempty,min=0,max=100"`
	Description *string  `json:"description" db:"description"`
}

// Record is a stored signal with the fields assigned by the store.
type Record struct {
	ID        int64     `json:"id" db:"id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	Signal
}

// Query selects records ordered by creation time, newest first.
type Query struct {
	Style    *Style
	Rating   *Rating
	MinScore *int
	// Limit of zero means no limit.
	Limit int
}

// Payload returns the explicit insert payload: every recognized column is
// present, absent values map to nil.
func (s Signal) Payload() map[string]any {
	return map[string]any{
		"symbol":      deref(s.Symbol),
		"timeframe":   deref(s.Timeframe),
		"style":       deref(s.Style),
		"rating":      deref(s.Rating),
		"score":       deref(s.Score),
		"entry":       deref(s.Entry),
		"tp1":         deref(s.TP1),
		"tp2":         deref(s.TP2),
		"tp3":         deref(s.TP3),
		"stop_loss":   deref(s.StopLoss),
		"rr":          deref(s.RR),
		"resistance":  deref(s.Resistance),
		"support":     deref(s.Support),
		"setup":       deref(s.Setup),
		"wave":        deref(s.Wave),
		"confluence":  deref(s.Confluence),
		"description": deref(s.Description),
	}
}

// Columns lists the payload columns in table order.
var Columns = []string{
	"symbol", "timeframe", "style", "rating", "score", "entry", "tp1", "tp2", "tp3",
	"stop_loss", "rr", "resistance", "support", "setup", "wave", "confluence", "description",
}

func deref[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

// Ptr returns a pointer to v. Handy when building signals in code.
func Ptr[T any](v T) *T {
	return &v
}
