package rules

import (
	"github.com/codeclash/codeclash-server/internal/game/gameerr"
	"github.com/codeclash/codeclash-server/internal/game/state"
)

// CheckTurn verifies that the game accepts actions and that it is playerID's turn.
func CheckTurn(st *state.GameState, playerID string) (*state.Player, error) {
	if st.Status != state.StatusInProgress {
		return nil, gameerr.New(gameerr.CodeGameNotActive, "game is %s", st.Status)
	}
	p, ok := st.PlayerByID(playerID)
	if !ok {
		return nil, gameerr.New(gameerr.CodePlayerNotFound, "player %s is not seated", playerID)
	}
	if !st.IsCurrentPlayer(playerID) {
		return nil, gameerr.New(gameerr.CodeNotYourTurn, "it is not %s's turn", p.Nickname)
	}
	return p, nil
}

// MustPass reports whether the player still owes skipped turns and may
// therefore only pass.
func MustPass(p *state.Player) bool {
	return p.SkippedTurns > 0
}
