package effects

import (
	"go.uber.org/zap"

	"github.com/codeclash/codeclash-server/internal/game/cards"
	"github.com/codeclash/codeclash-server/internal/game/gameerr"
	"github.com/codeclash/codeclash-server/internal/game/state"
	"github.com/codeclash/codeclash-server/internal/game/targeting"
)

// playOperation dispatches on the card's effect. Each branch re-checks the
// legality of its targets right before mutating.
func (r *Resolver) playOperation(st *state.GameState, actor *state.Player, card cards.Card, targets []targeting.Selection) (*Outcome, error) {
	out := &Outcome{Card: card, Targets: targets}

	var err error
	switch card.Effect {
	case cards.EffectArchitectChange:
		err = architectChange(st, targets[0], targets[1])
	case cards.EffectRecruitAce:
		err = recruitAce(st, actor, targets[0])
	case cards.EffectInternalPhishing:
		out.BugsMoved, err = internalPhishing(st, actor, targets)
	case cards.EffectEndYearParty:
		actor.RemoveFromHand(card.ID)
		st.Discard(card)
		r.endYearParty(st, actor)
		return out, nil
	case cards.EffectProjectSwap:
		err = projectSwap(st, actor, targets[0])
	default:
		return nil, gameerr.New(gameerr.CodeInvalidAction, "unknown operation %q", card.Effect)
	}
	if err != nil {
		return nil, err
	}

	actor.RemoveFromHand(card.ID)
	st.Discard(card)
	r.logger.Debug("operation resolved",
		zap.String("player_id", actor.ID),
		zap.String("effect", string(card.Effect)),
		zap.Int("targets", len(targets)),
	)
	return out, nil
}

// architectChange exchanges two modules between their owners, each module
// taking the other's seat position.
func architectChange(st *state.GameState, a, b targeting.Selection) error {
	ownerA, modA, okA := st.FindModule(a.ModuleID)
	ownerB, modB, okB := st.FindModule(b.ModuleID)
	if !okA || !okB {
		return gameerr.New(gameerr.CodeTargetNotFound, "module to exchange not found")
	}
	if ownerA.ID == ownerB.ID {
		return gameerr.New(gameerr.CodeInvalidTargetForCard, "both modules belong to %s", ownerA.Nickname)
	}
	if modA.IsStabilized() || modB.IsStabilized() {
		return gameerr.New(gameerr.CodeModuleAlreadyStabilized, "stabilized modules cannot be exchanged")
	}
	if !ownerA.CanHold(modB.Color(), modA.ID()) || !ownerB.CanHold(modA.Color(), modB.ID()) {
		return gameerr.New(gameerr.CodeDuplicateModuleColor, "exchange would duplicate a module color")
	}

	ia := moduleIndex(ownerA, modA.ID())
	ib := moduleIndex(ownerB, modB.ID())
	ownerA.Modules[ia], ownerB.Modules[ib] = modB, modA
	return nil
}

func recruitAce(st *state.GameState, actor *state.Player, target targeting.Selection) error {
	owner, m, ok := st.FindModule(target.ModuleID)
	if !ok || owner.ID == actor.ID {
		return gameerr.New(gameerr.CodeTargetNotFound, "enemy module %s not found", target.ModuleID)
	}
	if m.IsStabilized() {
		return gameerr.New(gameerr.CodeModuleAlreadyStabilized, "module %s is stabilized", m.ID())
	}
	if !actor.CanHold(m.Color(), "") {
		return gameerr.New(gameerr.CodeDuplicateModuleColor, "%s already owns a %s module", actor.Nickname, m.Color())
	}
	owner.RemoveModule(m.ID())
	actor.Modules = append(actor.Modules, m)
	return nil
}

// internalPhishing moves the actor's bugs onto the selected free enemy
// modules, one bug per destination. Bugs are taken in module order then
// attachment order; each goes to the first unused compatible destination in
// selection order. Bugs without a destination stay where they are.
func internalPhishing(st *state.GameState, actor *state.Player, targets []targeting.Selection) (int, error) {
	dests := make([]*state.Module, 0, len(targets))
	for _, t := range targets {
		owner, m, ok := st.FindModule(t.ModuleID)
		if !ok || owner.ID == actor.ID {
			return 0, gameerr.New(gameerr.CodeTargetNotFound, "enemy module %s not found", t.ModuleID)
		}
		if m.State != state.ModuleFree {
			return 0, gameerr.New(gameerr.CodeInvalidTargetForCard, "module %s is not free", m.ID())
		}
		dests = append(dests, m)
	}

	used := make([]bool, len(dests))
	moved := 0
	for _, src := range actor.Modules {
		kept := src.Bugs[:0:0]
		for _, bug := range src.Bugs {
			i := firstDestination(dests, used, bug)
			if i < 0 {
				kept = append(kept, bug)
				continue
			}
			used[i] = true
			dests[i].AttachBug(bug)
			moved++
		}
		src.Bugs = kept
		src.Recompute()
	}
	return moved, nil
}

func firstDestination(dests []*state.Module, used []bool, bug cards.Card) int {
	for i, d := range dests {
		if !used[i] && bug.CompatibleWith(d.Color()) {
			return i
		}
	}
	return -1
}

// endYearParty empties every hand into the discard pile, then deals everyone
// back to hand size starting with the actor.
func (r *Resolver) endYearParty(st *state.GameState, actor *state.Player) {
	for _, p := range st.Players {
		st.Discard(p.Hand...)
		p.Hand = []cards.Card{}
	}
	start := st.PlayerIndex(actor.ID)
	for i := range st.Players {
		p := st.Players[(start+i)%len(st.Players)]
		st.RefillHand(p, r.handSize, r.rng)
	}
}

func projectSwap(st *state.GameState, actor *state.Player, target targeting.Selection) error {
	other, ok := st.PlayerByID(target.PlayerID)
	if !ok || other.ID == actor.ID {
		return gameerr.New(gameerr.CodeTargetNotFound, "enemy player %s not found", target.PlayerID)
	}
	actor.Modules, other.Modules = other.Modules, actor.Modules
	return nil
}

func moduleIndex(p *state.Player, moduleID string) int {
	for i, m := range p.Modules {
		if m.ID() == moduleID {
			return i
		}
	}
	return -1
}
