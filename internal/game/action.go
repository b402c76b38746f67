package game

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/codeclash/codeclash-server/internal/game/gameerr"
	"github.com/codeclash/codeclash-server/internal/game/targeting"
)

// ActionType identifies what a player is asking the engine to do.
type ActionType string

const (
	ActionPlayCard     ActionType = "PLAY_CARD"
	ActionDiscardCards ActionType = "DISCARD_CARDS"
	ActionDrawCards    ActionType = "DRAW_CARDS"
	ActionPassTurn     ActionType = "PASS_TURN"
)

// ActionData is the payload of an action. The set of implementations is
// closed; each one belongs to exactly one ActionType.
type ActionData interface {
	actionType() ActionType
}

// PlayCardData plays a card from hand with an optional target selection.
type PlayCardData struct {
	CardID  string                `json:"cardId"`
	Targets []targeting.Selection `json:"targets,omitempty"`
}

// DiscardCardsData discards the listed hand cards and ends the turn.
type DiscardCardsData struct {
	CardIDs []string `json:"cardIds"`
}

// DrawCardsData tops the hand up to the standard size.
type DrawCardsData struct{}

// PassTurnData ends the turn without playing.
type PassTurnData struct{}

func (PlayCardData) actionType() ActionType     { return ActionPlayCard }
func (DiscardCardsData) actionType() ActionType { return ActionDiscardCards }
func (DrawCardsData) actionType() ActionType    { return ActionDrawCards }
func (PassTurnData) actionType() ActionType     { return ActionPassTurn }

// PlayerAction is one inbound action, from a client or an AI seat.
type PlayerAction struct {
	Type      ActionType
	PlayerID  string
	Data      ActionData
	Timestamp time.Time
}

// NewAction builds an action whose type is taken from its payload.
func NewAction(playerID string, data ActionData) PlayerAction {
	return PlayerAction{
		Type:      data.actionType(),
		PlayerID:  playerID,
		Data:      data,
		Timestamp: time.Now(),
	}
}

// PlayCard is shorthand for a PLAY_CARD action.
func PlayCard(playerID, cardID string, targets ...targeting.Selection) PlayerAction {
	return NewAction(playerID, PlayCardData{CardID: cardID, Targets: targets})
}

// DiscardCards is shorthand for a DISCARD_CARDS action.
func DiscardCards(playerID string, cardIDs ...string) PlayerAction {
	return NewAction(playerID, DiscardCardsData{CardIDs: cardIDs})
}

// DrawCards is shorthand for a DRAW_CARDS action.
func DrawCards(playerID string) PlayerAction {
	return NewAction(playerID, DrawCardsData{})
}

// PassTurn is shorthand for a PASS_TURN action.
func PassTurn(playerID string) PlayerAction {
	return NewAction(playerID, PassTurnData{})
}

// check verifies the payload matches the declared type.
func (a PlayerAction) check() error {
	if a.Data == nil {
		return gameerr.New(gameerr.CodeInvalidAction, "%s action has no data", a.Type)
	}
	if a.Data.actionType() != a.Type {
		return gameerr.New(gameerr.CodeInvalidAction,
			"action type %s does not match %s payload", a.Type, a.Data.actionType())
	}
	return nil
}

type wireAction struct {
	Type      ActionType      `json:"type"`
	PlayerID  string          `json:"playerId"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// MarshalJSON encodes the action as {type, playerId, data, timestamp}.
func (a PlayerAction) MarshalJSON() ([]byte, error) {
	var raw json.RawMessage
	if a.Data != nil {
		b, err := json.Marshal(a.Data)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	return json.Marshal(wireAction{Type: a.Type, PlayerID: a.PlayerID, Data: raw, Timestamp: a.Timestamp})
}

// UnmarshalJSON decodes {type, playerId, data, timestamp} into the payload
// matching type.
func (a *PlayerAction) UnmarshalJSON(b []byte) error {
	var w wireAction
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	data, err := DecodeActionData(w.Type, w.Data)
	if err != nil {
		return err
	}
	*a = PlayerAction{Type: w.Type, PlayerID: w.PlayerID, Data: data, Timestamp: w.Timestamp}
	return nil
}

// DecodeActionData parses a raw payload for the given action type.
func DecodeActionData(t ActionType, raw json.RawMessage) (ActionData, error) {
	switch t {
	case ActionPlayCard:
		var d PlayCardData
		if err := decodeOptional(raw, &d); err != nil {
			return nil, err
		}
		return d, nil
	case ActionDiscardCards:
		var d DiscardCardsData
		if err := decodeOptional(raw, &d); err != nil {
			return nil, err
		}
		return d, nil
	case ActionDrawCards:
		return DrawCardsData{}, nil
	case ActionPassTurn:
		return PassTurnData{}, nil
	default:
		return nil, gameerr.New(gameerr.CodeInvalidAction, "unknown action type %q", t)
	}
}

func decodeOptional(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode action data: %w", err)
	}
	return nil
}
