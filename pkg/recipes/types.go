package recipes

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pantrylabs/cookbook/pkg/attrs"
)

// Price is a fixed-point money amount serialized with exactly two decimal
// places. JSON input accepts both a number and a quoted string.
type Price struct {
	decimal.Decimal
}

// NewPrice builds a Price from a decimal string. Panics on malformed input;
// intended for literals in tests and fixtures.
func NewPrice(s string) Price {
	return Price{decimal.RequireFromString(s)}
}

// MarshalJSON renders the price as a two-decimal string
func (p Price) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.StringFixed(2))
}

// UnmarshalJSON parses a price from a JSON number or string
func (p *Price) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("malformed decimal: %w", err)
	}
	p.Decimal = d
	return nil
}

// maxWholePrice bounds the integer part of a price: five digits in total
// minus the two reserved for cents
var maxWholePrice = decimal.NewFromInt(1000)

// Validate reports a constraint message when the price does not fit the
// stored scale, or an empty string when it does.
func (p Price) Validate() string {
	if p.Exponent() < -2 {
		return "ensure that there are no more than 2 decimal places"
	}
	if p.Abs().GreaterThanOrEqual(maxWholePrice) {
		return "ensure that there are no more than 5 digits in total"
	}
	return ""
}

// Recipe is a stored recipe with its relationship sets loaded
type Recipe struct {
	ID          int64
	UserID      int64
	Title       string
	TimeMinutes int
	Price       Price
	Link        string
	ImagePath   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Tags        []attrs.Attribute
	Ingredients []attrs.Attribute
}

// Summary is the list response shape: relationship sets as bare id lists
type Summary struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	TimeMinutes int     `json:"time_minutes"`
	Price       Price   `json:"price"`
	Link        string  `json:"link"`
	Tags        []int64 `json:"tags"`
	Ingredients []int64 `json:"ingredients"`
}

// Detail is the single-recipe response shape: relationship sets expanded into
// {id, name} objects
type Detail struct {
	ID          int64             `json:"id"`
	Title       string            `json:"title"`
	TimeMinutes int               `json:"time_minutes"`
	Price       Price             `json:"price"`
	Link        string            `json:"link"`
	Image       string            `json:"image"`
	Tags        []attrs.Attribute `json:"tags"`
	Ingredients []attrs.Attribute `json:"ingredients"`
}

// Detail converts the recipe into its detail response shape
func (r *Recipe) Detail() Detail {
	tags := r.Tags
	if tags == nil {
		tags = []attrs.Attribute{}
	}
	ingredients := r.Ingredients
	if ingredients == nil {
		ingredients = []attrs.Attribute{}
	}
	return Detail{
		ID:          r.ID,
		Title:       r.Title,
		TimeMinutes: r.TimeMinutes,
		Price:       r.Price,
		Link:        r.Link,
		Image:       r.ImagePath,
		Tags:        tags,
		Ingredients: ingredients,
	}
}

// ImageResult is the upload response shape
type ImageResult struct {
	ID    int64  `json:"id"`
	Image string `json:"image"`
}

var (
	// ErrNotFound is returned when a recipe is absent or owned by another user.
	// The two cases are deliberately indistinguishable.
	ErrNotFound = errors.New("recipe not found")
	// ErrImageRequired is returned when an upload carries no image field
	ErrImageRequired = errors.New("image is required")
)

// ValidationError carries field-level validation messages
type ValidationError map[string]string

func (v ValidationError) Error() string {
	fields := make([]string, 0, len(v))
	for field := range v {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+v[field])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// AsValidation unwraps err into a ValidationError, if it is one
func AsValidation(err error) (ValidationError, bool) {
	var v ValidationError
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}
