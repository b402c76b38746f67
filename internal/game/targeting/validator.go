package targeting

import (
	"github.com/codeclash/codeclash-server/internal/game/cards"
	"github.com/codeclash/codeclash-server/internal/game/gameerr"
	"github.com/codeclash/codeclash-server/internal/game/state"
)

// ComputeValidTargets enumerates every candidate for the card and marks each
// valid or invalid with a reason. The result only reflects st as passed in.
func ComputeValidTargets(card cards.Card, st *state.GameState, actorID string) []Option {
	actor, ok := st.PlayerByID(actorID)
	if !ok {
		return []Option{}
	}

	switch card.Type {
	case cards.TypeBug:
		return enemyModules(st, actor, func(m *state.Module) (gameerr.Code, string) {
			return bugTargetCheck(card, m)
		})
	case cards.TypePatch:
		return ownModules(actor, func(m *state.Module) (gameerr.Code, string) {
			if !card.CompatibleWith(m.Color()) {
				return gameerr.CodeInvalidTargetForCard, "patch color does not match module"
			}
			if m.IsStabilized() {
				return gameerr.CodeModuleAlreadyStabilized, "module is already stabilized"
			}
			return "", ""
		})
	case cards.TypeOperation:
		return operationTargets(card, st, actor)
	default:
		return []Option{}
	}
}

func bugTargetCheck(bug cards.Card, m *state.Module) (gameerr.Code, string) {
	if !bug.CompatibleWith(m.Color()) {
		return gameerr.CodeInvalidTargetForCard, "bug color does not match module"
	}
	if m.IsStabilized() {
		return gameerr.CodeModuleAlreadyStabilized, "module is stabilized and immune to bugs"
	}
	if m.IsBugged() && !bug.IsMulticolor() {
		return gameerr.CodeInvalidTargetForCard, "module already carries a bug"
	}
	return "", ""
}

func operationTargets(card cards.Card, st *state.GameState, actor *state.Player) []Option {
	switch card.Effect {
	case cards.EffectArchitectChange:
		var out []Option
		for _, p := range st.Players {
			for _, m := range p.Modules {
				out = append(out, moduleOption(KindAnyModule, p, m, stabilizedCheck))
			}
		}
		return nonNil(out)

	case cards.EffectRecruitAce:
		return enemyModules(st, actor, func(m *state.Module) (gameerr.Code, string) {
			if code, reason := stabilizedCheck(m); code != "" {
				return code, reason
			}
			if !actor.CanHold(m.Color(), "") {
				return gameerr.CodeDuplicateModuleColor, "you already own a module of this color"
			}
			return "", ""
		})

	case cards.EffectInternalPhishing:
		var bugs []cards.Card
		for _, m := range actor.Modules {
			bugs = append(bugs, m.Bugs...)
		}
		return enemyModules(st, actor, func(m *state.Module) (gameerr.Code, string) {
			if m.State != state.ModuleFree {
				return gameerr.CodeInvalidTargetForCard, "only free modules can receive bugs"
			}
			for _, b := range bugs {
				if b.CompatibleWith(m.Color()) {
					return "", ""
				}
			}
			return gameerr.CodeInvalidTargetForCard, "none of your bugs match this module"
		})

	case cards.EffectProjectSwap:
		var out []Option
		for _, p := range st.Players {
			if p.ID == actor.ID {
				continue
			}
			out = append(out, Option{Kind: KindEnemyPlayer, PlayerID: p.ID, Valid: true})
		}
		return nonNil(out)

	default:
		return []Option{}
	}
}

func stabilizedCheck(m *state.Module) (gameerr.Code, string) {
	if m.IsStabilized() {
		return gameerr.CodeModuleAlreadyStabilized, "module is stabilized"
	}
	return "", ""
}

type moduleCheck func(m *state.Module) (gameerr.Code, string)

func enemyModules(st *state.GameState, actor *state.Player, check moduleCheck) []Option {
	var out []Option
	for _, p := range st.Players {
		if p.ID == actor.ID {
			continue
		}
		for _, m := range p.Modules {
			out = append(out, moduleOption(KindEnemyModule, p, m, check))
		}
	}
	return nonNil(out)
}

func ownModules(actor *state.Player, check moduleCheck) []Option {
	var out []Option
	for _, m := range actor.Modules {
		out = append(out, moduleOption(KindOwnModule, actor, m, check))
	}
	return nonNil(out)
}

func moduleOption(kind Kind, owner *state.Player, m *state.Module, check moduleCheck) Option {
	code, reason := check(m)
	return Option{
		Kind:     kind,
		PlayerID: owner.ID,
		ModuleID: m.ID(),
		Valid:    code == "",
		Reason:   reason,
		Code:     code,
	}
}

func nonNil(out []Option) []Option {
	if out == nil {
		return []Option{}
	}
	return out
}

// HasValidSelection reports whether the card can legally be played right now,
// meaning its minimum number of targets can be met.
func HasValidSelection(card cards.Card, st *state.GameState, actorID string) bool {
	req := Requirements(card)
	if req.MinTargets == 0 {
		return true
	}
	valid := 0
	for _, o := range ComputeValidTargets(card, st, actorID) {
		if o.Valid {
			valid++
		}
	}
	if valid < req.MinTargets {
		return false
	}
	if card.Type == cards.TypeOperation && card.Effect == cards.EffectArchitectChange {
		return len(ArchitectPairs(st, actorID)) > 0
	}
	return true
}

// Validate checks a submitted selection against a freshly recomputed set of
// options. Nothing the client saw earlier is trusted.
func Validate(card cards.Card, selected []Selection, st *state.GameState, actorID string) error {
	req := Requirements(card)
	if len(selected) < req.MinTargets {
		return gameerr.New(gameerr.CodeInsufficientTargets,
			"%s needs at least %d target(s), got %d", card, req.MinTargets, len(selected))
	}
	if !req.Allows(len(selected)) {
		return gameerr.New(gameerr.CodeInvalidTargetForCard,
			"%s accepts at most %d target(s), got %d", card, req.MaxTargets, len(selected))
	}

	seen := make(map[string]bool, len(selected))
	for _, sel := range selected {
		if seen[sel.key()] {
			return gameerr.New(gameerr.CodeInvalidTargetForCard, "duplicate target %s", sel)
		}
		seen[sel.key()] = true
	}

	options := ComputeValidTargets(card, st, actorID)
	for _, sel := range selected {
		opt, ok := match(options, sel)
		if !ok {
			return gameerr.New(gameerr.CodeTargetNotFound, "target %s is not available for %s", sel, card)
		}
		if !opt.Valid {
			return gameerr.New(opt.Code, "target %s rejected: %s", sel, opt.Reason)
		}
	}

	if card.Type == cards.TypeOperation && card.Effect == cards.EffectArchitectChange {
		return validateArchitectPair(st, selected[0], selected[1])
	}
	return nil
}

func match(options []Option, sel Selection) (Option, bool) {
	for _, o := range options {
		if o.PlayerID != sel.PlayerID || o.ModuleID != sel.ModuleID {
			continue
		}
		if sel.Kind != "" && sel.Kind != o.Kind {
			continue
		}
		return o, true
	}
	return Option{}, false
}

// validateArchitectPair checks that two modules can be exchanged between
// their owners without breaking either owner's one-per-color rule.
func validateArchitectPair(st *state.GameState, a, b Selection) error {
	if a.PlayerID == b.PlayerID {
		return gameerr.New(gameerr.CodeInvalidTargetForCard, "both modules belong to the same player")
	}
	ownerA, modA, okA := st.FindModule(a.ModuleID)
	ownerB, modB, okB := st.FindModule(b.ModuleID)
	if !okA || !okB {
		return gameerr.New(gameerr.CodeTargetNotFound, "module to exchange no longer exists")
	}
	if !ownerA.CanHold(modB.Color(), modA.ID()) {
		return gameerr.New(gameerr.CodeDuplicateModuleColor,
			"%s would hold two %s modules", ownerA.Nickname, modB.Color())
	}
	if !ownerB.CanHold(modA.Color(), modB.ID()) {
		return gameerr.New(gameerr.CodeDuplicateModuleColor,
			"%s would hold two %s modules", ownerB.Nickname, modA.Color())
	}
	return nil
}

// ArchitectPairs lists every legal pair of modules an architect change could
// exchange. Used by the AI to pick a complete selection.
func ArchitectPairs(st *state.GameState, actorID string) [][2]Selection {
	card := cards.Card{Type: cards.TypeOperation, Effect: cards.EffectArchitectChange}
	var valid []Selection
	for _, o := range ComputeValidTargets(card, st, actorID) {
		if o.Valid {
			valid = append(valid, o.Selection())
		}
	}
	var pairs [][2]Selection
	for i := 0; i < len(valid); i++ {
		for j := i + 1; j < len(valid); j++ {
			if validateArchitectPair(st, valid[i], valid[j]) == nil {
				pairs = append(pairs, [2]Selection{valid[i], valid[j]})
			}
		}
	}
	return pairs
}
