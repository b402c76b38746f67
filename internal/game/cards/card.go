package cards

import (
	"fmt"
	"strings"
)

// Type is the broad category of a card.
type Type string

const (
	TypeModule    Type = "MODULE"
	TypeBug       Type = "BUG"
	TypePatch     Type = "PATCH"
	TypeOperation Type = "OPERATION"
)

// Color ties modules to the bugs and patches that can target them.
type Color string

const (
	ColorFrontend   Color = "FRONTEND"
	ColorBackend    Color = "BACKEND"
	ColorDatabase   Color = "DATABASE"
	ColorInfra      Color = "INFRA"
	ColorMulticolor Color = "MULTICOLOR"
)

// ModuleColors lists the four colors a winning project must cover.
var ModuleColors = []Color{ColorFrontend, ColorBackend, ColorDatabase, ColorInfra}

// Effect names the special behaviour of an OPERATION card.
type Effect string

const (
	EffectArchitectChange  Effect = "ARCHITECT_CHANGE"
	EffectRecruitAce       Effect = "RECRUIT_ACE"
	EffectInternalPhishing Effect = "INTERNAL_PHISHING"
	EffectEndYearParty     Effect = "END_YEAR_PARTY"
	EffectProjectSwap      Effect = "PROJECT_SWAP"
)

// Effects lists every operation effect.
var Effects = []Effect{
	EffectArchitectChange,
	EffectRecruitAce,
	EffectInternalPhishing,
	EffectEndYearParty,
	EffectProjectSwap,
}

// Card is an immutable card definition instance. Name and Description are
// translation keys resolved by the presentation layer.
type Card struct {
	ID          string `json:"id"`
	Type        Type   `json:"type"`
	Color       Color  `json:"color,omitempty"`
	Effect      Effect `json:"effect,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// IsMulticolor reports whether the card carries the wildcard color.
func (c Card) IsMulticolor() bool {
	return c.Color == ColorMulticolor
}

// CompatibleWith reports whether a bug or patch of this card's color may be
// attached to a module of the given color.
func (c Card) CompatibleWith(moduleColor Color) bool {
	return ColorsCompatible(c.Color, moduleColor)
}

// ColorsCompatible applies the color rule shared by bugs, patches and
// phishing transfers: equal colors match and multicolor matches anything.
func ColorsCompatible(a, b Color) bool {
	return a == b || a == ColorMulticolor || b == ColorMulticolor
}

func (c Card) String() string {
	switch c.Type {
	case TypeOperation:
		return fmt.Sprintf("%s(%s)", c.Type, c.Effect)
	default:
		return fmt.Sprintf("%s(%s)", c.Type, c.Color)
	}
}

// nameKey derives the translation keys for a card definition.
func nameKey(t Type, color Color, effect Effect) (string, string) {
	var base string
	if t == TypeOperation {
		base = "card." + strings.ToLower(string(t)) + "." + strings.ToLower(string(effect))
	} else {
		base = "card." + strings.ToLower(string(t)) + "." + strings.ToLower(string(color))
	}
	return base + ".name", base + ".description"
}
