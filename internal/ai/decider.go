package ai

import (
	"fmt"
	"math/rand/v2"
	"sort"

	"go.uber.org/zap"

	"github.com/codeclash/codeclash-server/internal/game"
	"github.com/codeclash/codeclash-server/internal/game/cards"
	"github.com/codeclash/codeclash-server/internal/game/gameerr"
	"github.com/codeclash/codeclash-server/internal/game/rules"
	"github.com/codeclash/codeclash-server/internal/game/state"
	"github.com/codeclash/codeclash-server/internal/game/targeting"
)

// passWeight keeps passing possible but unlikely when something is playable.
const passWeight = 5.0

// Candidate is one legal action with the weight the personality gives it.
type Candidate struct {
	Action game.PlayerAction
	Weight float64
	Reason string
}

// Decider picks an action for an AI seat. It is not safe for concurrent
// use; the owning room serializes calls.
type Decider struct {
	rng    *rand.Rand
	logger *zap.Logger
}

// NewDecider creates a decider drawing randomness from rng.
func NewDecider(rng *rand.Rand, logger *zap.Logger) *Decider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Decider{rng: rng, logger: logger}
}

// Decide returns the action playerID should take now.
func (d *Decider) Decide(st *state.GameState, playerID string, p Personality) (game.PlayerAction, error) {
	actor, err := rules.CheckTurn(st, playerID)
	if err != nil {
		return game.PlayerAction{}, err
	}
	if rules.MustPass(actor) {
		return game.PassTurn(playerID), nil
	}

	candidates := d.Candidates(st, actor, p)
	if len(candidates) == 0 {
		return game.PassTurn(playerID), nil
	}
	picked := d.pick(candidates, p.Difficulty)
	d.logger.Debug("ai decision",
		zap.String("player_id", playerID),
		zap.String("personality", p.Name),
		zap.String("action_type", string(picked.Action.Type)),
		zap.String("reason", picked.Reason),
		zap.Int("candidates", len(candidates)),
	)
	return picked.Action, nil
}

// DecideOrPass runs Decide and falls back to PASS_TURN when it fails or
// panics. The returned error is only for logging; the action is always usable.
func (d *Decider) DecideOrPass(st *state.GameState, playerID string, p Personality) (action game.PlayerAction, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = gameerr.New(gameerr.CodeAIDecisionFailed, "panic: %v", r)
		}
		if err != nil {
			d.logger.Warn("ai decision failed, passing",
				zap.String("player_id", playerID),
				zap.String("personality", p.Name),
				zap.Error(err),
			)
			action = game.PassTurn(playerID)
		}
	}()

	action, err = d.Decide(st, playerID, p)
	if err != nil {
		return action, fmt.Errorf("%w: %v", gameerr.ErrAIDecisionFailed, err)
	}
	return action, nil
}

// Candidates enumerates every playable card with a chosen target set,
// weighted by the personality, plus PASS_TURN. With nothing playable the
// hand is discarded instead.
func (d *Decider) Candidates(st *state.GameState, actor *state.Player, p Personality) []Candidate {
	var out []Candidate
	for _, c := range actor.Hand {
		if !targeting.HasValidSelection(c, st, actor.ID) {
			continue
		}
		if cand, ok := d.candidateFor(st, actor, c, p); ok {
			out = append(out, cand)
		}
	}

	if len(out) == 0 {
		if len(actor.Hand) == 0 {
			return []Candidate{{Action: game.PassTurn(actor.ID), Weight: 1, Reason: "empty hand"}}
		}
		ids := make([]string, len(actor.Hand))
		for i, c := range actor.Hand {
			ids[i] = c.ID
		}
		return []Candidate{{Action: game.DiscardCards(actor.ID, ids...), Weight: 1, Reason: "nothing playable"}}
	}
	return append(out, Candidate{Action: game.PassTurn(actor.ID), Weight: passWeight, Reason: "pass"})
}

func (d *Decider) candidateFor(st *state.GameState, actor *state.Player, c cards.Card, p Personality) (Candidate, bool) {
	trait := func(v int, div float64) float64 { return float64(v) / div }

	switch c.Type {
	case cards.TypeModule:
		if !actor.CanHold(c.Color, "") {
			return Candidate{}, false
		}
		return Candidate{
			Action: game.PlayCard(actor.ID, c.ID),
			Weight: 40 + trait(p.Defensive, 4) + trait(p.Methodical, 4),
			Reason: "build module",
		}, true

	case cards.TypeBug:
		t, ok := d.chooseModule(st, actor, c, p)
		if !ok {
			return Candidate{}, false
		}
		return Candidate{
			Action: game.PlayCard(actor.ID, c.ID, t),
			Weight: 25 + trait(p.Aggressive, 2),
			Reason: "infect enemy module",
		}, true

	case cards.TypePatch:
		t, ok := d.choosePatchTarget(st, actor, c)
		if !ok {
			return Candidate{}, false
		}
		return Candidate{
			Action: game.PlayCard(actor.ID, c.ID, t),
			Weight: 25 + trait(p.Defensive, 2),
			Reason: "patch own module",
		}, true
	}

	switch c.Effect {
	case cards.EffectRecruitAce:
		t, ok := d.chooseModule(st, actor, c, p)
		if !ok {
			return Candidate{}, false
		}
		return Candidate{
			Action: game.PlayCard(actor.ID, c.ID, t),
			Weight: 25 + trait(p.Opportunistic, 2),
			Reason: "recruit enemy module",
		}, true

	case cards.EffectArchitectChange:
		pairs := targeting.ArchitectPairs(st, actor.ID)
		if len(pairs) == 0 {
			return Candidate{}, false
		}
		pair := pairs[d.rng.IntN(len(pairs))]
		return Candidate{
			Action: game.PlayCard(actor.ID, c.ID, pair[0], pair[1]),
			Weight: 10 + trait(p.Opportunistic, 3),
			Reason: "exchange modules",
		}, true

	case cards.EffectInternalPhishing:
		if actor.BugCount() == 0 {
			return Candidate{}, false
		}
		var sel []targeting.Selection
		for _, o := range targeting.ComputeValidTargets(c, st, actor.ID) {
			if o.Valid {
				sel = append(sel, o.Selection())
			}
		}
		if len(sel) == 0 {
			return Candidate{}, false
		}
		return Candidate{
			Action: game.PlayCard(actor.ID, c.ID, sel...),
			Weight: 20 + trait(p.Opportunistic, 2) + trait(p.Aggressive, 4),
			Reason: "offload bugs",
		}, true

	case cards.EffectEndYearParty:
		return Candidate{
			Action: game.PlayCard(actor.ID, c.ID),
			Weight: 8 + trait(p.Opportunistic, 5),
			Reason: "reset hands",
		}, true

	case cards.EffectProjectSwap:
		leader, ok := leaderOther(st, actor.ID)
		if !ok || leader.Progress() <= actor.Progress() {
			return Candidate{}, false
		}
		return Candidate{
			Action: game.PlayCard(actor.ID, c.ID, targeting.Selection{Kind: targeting.KindEnemyPlayer, PlayerID: leader.ID}),
			Weight: 30 + trait(p.Opportunistic, 2),
			Reason: "swap with leader",
		}, true
	}
	return Candidate{}, false
}

// chooseModule picks an enemy module target. With probability methodical/100
// it aims at the owner with the most progress, otherwise at random.
func (d *Decider) chooseModule(st *state.GameState, actor *state.Player, c cards.Card, p Personality) (targeting.Selection, bool) {
	var valid []targeting.Option
	for _, o := range targeting.ComputeValidTargets(c, st, actor.ID) {
		if o.Valid {
			valid = append(valid, o)
		}
	}
	if len(valid) == 0 {
		return targeting.Selection{}, false
	}
	if d.rng.IntN(100) < p.Methodical {
		sort.SliceStable(valid, func(i, j int) bool {
			return progressOf(st, valid[i].PlayerID) > progressOf(st, valid[j].PlayerID)
		})
		return valid[0].Selection(), true
	}
	return valid[d.rng.IntN(len(valid))].Selection(), true
}

// choosePatchTarget prefers the module closest to stabilizing, bugged ones first.
func (d *Decider) choosePatchTarget(st *state.GameState, actor *state.Player, c cards.Card) (targeting.Selection, bool) {
	var best targeting.Selection
	bestScore := -1
	for _, o := range targeting.ComputeValidTargets(c, st, actor.ID) {
		if !o.Valid {
			continue
		}
		m, ok := actor.Module(o.ModuleID)
		if !ok {
			continue
		}
		score := len(m.Patches) * 2
		if m.IsBugged() {
			score++
		}
		if score > bestScore {
			best, bestScore = o.Selection(), score
		}
	}
	return best, bestScore >= 0
}

// pick draws a weighted random candidate. EASY sometimes ignores weights,
// HARD sharpens them.
func (d *Decider) pick(cands []Candidate, difficulty state.Difficulty) Candidate {
	switch difficulty {
	case state.DifficultyEasy:
		if d.rng.IntN(100) < 30 {
			return cands[d.rng.IntN(len(cands))]
		}
	case state.DifficultyHard:
		sharp := make([]Candidate, len(cands))
		for i, c := range cands {
			c.Weight *= c.Weight
			sharp[i] = c
		}
		cands = sharp
	}

	total := 0.0
	for _, c := range cands {
		total += c.Weight
	}
	if total <= 0 {
		return cands[d.rng.IntN(len(cands))]
	}
	r := d.rng.Float64() * total
	for _, c := range cands {
		r -= c.Weight
		if r < 0 {
			return c
		}
	}
	return cands[len(cands)-1]
}

func progressOf(st *state.GameState, playerID string) int {
	p, ok := st.PlayerByID(playerID)
	if !ok {
		return 0
	}
	return p.Progress()*10 + len(p.Modules)
}

func leaderOther(st *state.GameState, actorID string) (*state.Player, bool) {
	var leader *state.Player
	for _, p := range st.Players {
		if p.ID == actorID {
			continue
		}
		if leader == nil || progressOf(st, p.ID) > progressOf(st, leader.ID) {
			leader = p
		}
	}
	return leader, leader != nil
}
