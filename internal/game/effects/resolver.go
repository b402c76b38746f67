// Package effects applies validated card plays to a game state.
package effects

import (
	"math/rand/v2"

	"go.uber.org/zap"

	"github.com/codeclash/codeclash-server/internal/game/cards"
	"github.com/codeclash/codeclash-server/internal/game/gameerr"
	"github.com/codeclash/codeclash-server/internal/game/state"
	"github.com/codeclash/codeclash-server/internal/game/targeting"
)

// Outcome describes what a successful play did.
type Outcome struct {
	Card    cards.Card            `json:"card"`
	Targets []targeting.Selection `json:"targets,omitempty"`
	// BugsMoved counts bugs transferred by an internal phishing.
	BugsMoved int `json:"bugsMoved,omitempty"`
}

// Resolver applies one play at a time. It is not safe for concurrent use;
// the owning room serializes access.
type Resolver struct {
	handSize int
	rng      *rand.Rand
	logger   *zap.Logger
}

// NewResolver creates a resolver drawing refills up to handSize.
func NewResolver(handSize int, rng *rand.Rand, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if handSize <= 0 {
		handSize = state.DefaultHandSize
	}
	return &Resolver{handSize: handSize, rng: rng, logger: logger}
}

// Play validates and applies the card from the actor's hand. On error the
// state is left untouched.
func (r *Resolver) Play(st *state.GameState, actorID, cardID string, targets []targeting.Selection) (*Outcome, error) {
	actor, ok := st.PlayerByID(actorID)
	if !ok {
		return nil, gameerr.New(gameerr.CodePlayerNotFound, "player %s is not seated", actorID)
	}
	card, ok := actor.HandCard(cardID)
	if !ok {
		return nil, gameerr.New(gameerr.CodeCardNotInHand, "card %s is not in %s's hand", cardID, actor.Nickname)
	}

	if card.Type == cards.TypeModule {
		if len(targets) > 0 {
			return nil, gameerr.New(gameerr.CodeInvalidTargetForCard, "modules take no targets")
		}
		return r.playModule(actor, card)
	}

	if err := targeting.Validate(card, targets, st, actorID); err != nil {
		return nil, err
	}

	switch card.Type {
	case cards.TypeBug:
		return r.playBug(st, actor, card, targets[0])
	case cards.TypePatch:
		return r.playPatch(actor, card, targets[0])
	case cards.TypeOperation:
		return r.playOperation(st, actor, card, targets)
	default:
		return nil, gameerr.New(gameerr.CodeInvalidAction, "unknown card type %q", card.Type)
	}
}

func (r *Resolver) playModule(actor *state.Player, card cards.Card) (*Outcome, error) {
	if !actor.CanHold(card.Color, "") {
		return nil, gameerr.New(gameerr.CodeDuplicateModuleColor,
			"%s already owns a %s module", actor.Nickname, card.Color)
	}
	actor.RemoveFromHand(card.ID)
	actor.Modules = append(actor.Modules, state.NewModule(card))
	return &Outcome{Card: card}, nil
}

func (r *Resolver) playBug(st *state.GameState, actor *state.Player, card cards.Card, target targeting.Selection) (*Outcome, error) {
	owner, m, ok := st.FindModule(target.ModuleID)
	if !ok || owner.ID == actor.ID {
		return nil, gameerr.New(gameerr.CodeTargetNotFound, "enemy module %s not found", target.ModuleID)
	}
	if m.IsStabilized() {
		return nil, gameerr.New(gameerr.CodeModuleAlreadyStabilized, "module %s is stabilized", m.ID())
	}
	actor.RemoveFromHand(card.ID)
	m.AttachBug(card)
	return &Outcome{Card: card, Targets: []targeting.Selection{target}}, nil
}

func (r *Resolver) playPatch(actor *state.Player, card cards.Card, target targeting.Selection) (*Outcome, error) {
	m, ok := actor.Module(target.ModuleID)
	if !ok {
		return nil, gameerr.New(gameerr.CodeTargetNotFound, "own module %s not found", target.ModuleID)
	}
	if m.IsStabilized() {
		return nil, gameerr.New(gameerr.CodeModuleAlreadyStabilized, "module %s is stabilized", m.ID())
	}
	actor.RemoveFromHand(card.ID)
	m.AttachPatch(card)
	return &Outcome{Card: card, Targets: []targeting.Selection{target}}, nil
}
