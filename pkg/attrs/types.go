package attrs

import "errors"

// Kind selects which owned collection a Collection operates on
type Kind string

const (
	// KindTag is the tag collection
	KindTag Kind = "tag"
	// KindIngredient is the ingredient collection
	KindIngredient Kind = "ingredient"
)

// table returns the backing table for the kind
func (k Kind) table() string {
	switch k {
	case KindTag:
		return "tags"
	case KindIngredient:
		return "ingredients"
	}
	return ""
}

// Route returns the API path the kind is served under
func (k Kind) Route() string {
	switch k {
	case KindTag:
		return "/api/tags"
	case KindIngredient:
		return "/api/ingredients"
	}
	return ""
}

// Attribute is a named label owned by a user. Tags and ingredients share this
// shape; only the backing table differs.
type Attribute struct {
	ID     int64  `json:"id"`
	UserID int64  `json:"-"`
	Name   string `json:"name"`
}

var (
	// ErrNameRequired is returned when creating an attribute without a name
	ErrNameRequired = errors.New("name is required")
	// ErrUnknownKind is returned when a Collection is built with an unknown kind
	ErrUnknownKind = errors.New("unknown attribute kind")
)
