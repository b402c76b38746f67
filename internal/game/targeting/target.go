package targeting

import (
	"fmt"
	"strings"

	"github.com/codeclash/codeclash-server/internal/game/cards"
	"github.com/codeclash/codeclash-server/internal/game/gameerr"
)

// Kind represents what sort of entity a card can target.
type Kind string

const (
	// KindOwnModule targets one of the acting player's modules
	KindOwnModule Kind = "OWN_MODULE"
	// KindEnemyModule targets a module owned by another player
	KindEnemyModule Kind = "ENEMY_MODULE"
	// KindAnyModule targets a module owned by anyone, the actor included
	KindAnyModule Kind = "ANY_MODULE"
	// KindEnemyPlayer targets another player as a whole
	KindEnemyPlayer Kind = "ENEMY_PLAYER"
)

// Unbounded marks a requirement with no upper limit on targets.
const Unbounded = -1

// Requirement defines what targets a card requires.
type Requirement struct {
	// Kinds lists the target kinds the card accepts
	Kinds []Kind `json:"kinds"`
	// MinTargets is the minimum number of targets required
	MinTargets int `json:"minTargets"`
	// MaxTargets is the maximum number of targets allowed, or Unbounded
	MaxTargets int `json:"maxTargets"`
	// Description is a human-readable description of the requirement
	Description string `json:"description"`
}

// Allows reports whether n targets fit the requirement's arity.
func (r Requirement) Allows(n int) bool {
	return n >= r.MinTargets && (r.MaxTargets == Unbounded || n <= r.MaxTargets)
}

// Option is a candidate target with its validity against the current state.
type Option struct {
	Kind     Kind         `json:"type"`
	PlayerID string       `json:"playerId"`
	ModuleID string       `json:"moduleId,omitempty"`
	Valid    bool         `json:"isValid"`
	Reason   string       `json:"reason,omitempty"`
	Code     gameerr.Code `json:"-"`
}

// Selection is the reduced form of a target a client submits back. It
// carries no validity and is always re-validated.
type Selection struct {
	Kind     Kind   `json:"type"`
	PlayerID string `json:"playerId"`
	ModuleID string `json:"moduleId,omitempty"`
}

// Selection strips the option down to what a client submits.
func (o Option) Selection() Selection {
	return Selection{Kind: o.Kind, PlayerID: o.PlayerID, ModuleID: o.ModuleID}
}

// key identifies the entity a selection points at.
func (s Selection) key() string {
	if s.ModuleID != "" {
		return "module:" + s.ModuleID
	}
	return "player:" + s.PlayerID
}

func (s Selection) String() string {
	if s.ModuleID != "" {
		return fmt.Sprintf("%s(%s/%s)", s.Kind, s.PlayerID, s.ModuleID)
	}
	return fmt.Sprintf("%s(%s)", s.Kind, s.PlayerID)
}

var (
	noTargets = Requirement{Kinds: []Kind{}, Description: "no target"}

	requirementsByType = map[cards.Type]Requirement{
		cards.TypeModule: noTargets,
		cards.TypeBug: {
			Kinds: []Kind{KindEnemyModule}, MinTargets: 1, MaxTargets: 1,
			Description: "one enemy module of a compatible color",
		},
		cards.TypePatch: {
			Kinds: []Kind{KindOwnModule}, MinTargets: 1, MaxTargets: 1,
			Description: "one of your modules of a compatible color",
		},
	}

	requirementsByEffect = map[cards.Effect]Requirement{
		cards.EffectArchitectChange: {
			Kinds: []Kind{KindAnyModule}, MinTargets: 2, MaxTargets: 2,
			Description: "two modules owned by different players",
		},
		cards.EffectRecruitAce: {
			Kinds: []Kind{KindEnemyModule}, MinTargets: 1, MaxTargets: 1,
			Description: "one enemy module that is not stabilized",
		},
		cards.EffectInternalPhishing: {
			Kinds: []Kind{KindEnemyModule}, MinTargets: 0, MaxTargets: Unbounded,
			Description: "any number of free enemy modules to receive your bugs",
		},
		cards.EffectEndYearParty: noTargets,
		cards.EffectProjectSwap: {
			Kinds: []Kind{KindEnemyPlayer}, MinTargets: 1, MaxTargets: 1,
			Description: "one enemy player",
		},
	}
)

// Requirements returns the target requirement of a card.
func Requirements(card cards.Card) Requirement {
	if card.Type == cards.TypeOperation {
		if r, ok := requirementsByEffect[card.Effect]; ok {
			return r
		}
		return noTargets
	}
	if r, ok := requirementsByType[card.Type]; ok {
		return r
	}
	return noTargets
}

// RequiresTarget reports whether playing the card involves a target selection step.
func RequiresTarget(card cards.Card) bool {
	return Requirements(card).MaxTargets != 0
}

// FormatTargets formats selections into a human-readable string for action history.
func FormatTargets(targets []Selection) string {
	if len(targets) == 0 {
		return ""
	}
	parts := make([]string, len(targets))
	for i, t := range targets {
		parts[i] = t.String()
	}
	return strings.Join(parts, ",")
}
