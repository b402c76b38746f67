package gameerr

import (
	"errors"
	"fmt"
)

// Category groups error codes by how callers are expected to surface them.
type Category int

const (
	// CategoryValidation marks an illegal action given the current turn or state.
	CategoryValidation Category = iota
	// CategoryNotFound marks a missing room, player, card or module.
	CategoryNotFound
	// CategoryCapacity marks a room that is full or below its player minimum.
	CategoryCapacity
	// CategoryInternalAI marks a failed AI decision. Never surfaced to players.
	CategoryInternalAI
)

func (c Category) String() string {
	switch c {
	case CategoryValidation:
		return "VALIDATION"
	case CategoryNotFound:
		return "NOT_FOUND"
	case CategoryCapacity:
		return "CAPACITY"
	case CategoryInternalAI:
		return "INTERNAL_AI"
	default:
		return "UNKNOWN"
	}
}

// Code identifies a specific failure reason.
type Code string

const (
	CodeNotYourTurn             Code = "NOT_YOUR_TURN"
	CodeCardNotInHand           Code = "CARD_NOT_IN_HAND"
	CodeDuplicateModuleColor    Code = "DUPLICATE_MODULE_COLOR"
	CodeTargetNotFound          Code = "TARGET_NOT_FOUND"
	CodeInvalidTargetForCard    Code = "INVALID_TARGET_FOR_CARD"
	CodeModuleAlreadyStabilized Code = "MODULE_ALREADY_STABILIZED"
	CodeInsufficientTargets     Code = "INSUFFICIENT_TARGETS"
	CodeGameNotActive           Code = "GAME_NOT_ACTIVE"
	CodeNotHost                 Code = "NOT_HOST"
	CodeInvalidAction           Code = "INVALID_ACTION"
	CodeRoomNotFound            Code = "ROOM_NOT_FOUND"
	CodePlayerNotFound          Code = "PLAYER_NOT_FOUND"
	CodeMatchNotFound           Code = "MATCH_NOT_FOUND"
	CodeRoomFull                Code = "ROOM_FULL"
	CodeNotEnoughPlayers        Code = "NOT_ENOUGH_PLAYERS"
	CodeAIDecisionFailed        Code = "AI_DECISION_FAILED"
)

var codeCategories = map[Code]Category{
	CodeNotYourTurn:             CategoryValidation,
	CodeCardNotInHand:           CategoryValidation,
	CodeDuplicateModuleColor:    CategoryValidation,
	CodeTargetNotFound:          CategoryValidation,
	CodeInvalidTargetForCard:    CategoryValidation,
	CodeModuleAlreadyStabilized: CategoryValidation,
	CodeInsufficientTargets:     CategoryValidation,
	CodeGameNotActive:           CategoryValidation,
	CodeNotHost:                 CategoryValidation,
	CodeInvalidAction:           CategoryValidation,
	CodeRoomNotFound:            CategoryNotFound,
	CodePlayerNotFound:          CategoryNotFound,
	CodeMatchNotFound:           CategoryNotFound,
	CodeRoomFull:                CategoryCapacity,
	CodeNotEnoughPlayers:        CategoryCapacity,
	CodeAIDecisionFailed:        CategoryInternalAI,
}

// Category returns the category a code belongs to.
func (c Code) Category() Category {
	if cat, ok := codeCategories[c]; ok {
		return cat
	}
	return CategoryValidation
}

// Error is a rule engine failure reported verbatim to the caller.
type Error struct {
	Code    Code
	Message string
}

// Sentinels usable with errors.Is.
var (
	ErrNotYourTurn             = &Error{Code: CodeNotYourTurn}
	ErrCardNotInHand           = &Error{Code: CodeCardNotInHand}
	ErrDuplicateModuleColor    = &Error{Code: CodeDuplicateModuleColor}
	ErrTargetNotFound          = &Error{Code: CodeTargetNotFound}
	ErrInvalidTargetForCard    = &Error{Code: CodeInvalidTargetForCard}
	ErrModuleAlreadyStabilized = &Error{Code: CodeModuleAlreadyStabilized}
	ErrInsufficientTargets     = &Error{Code: CodeInsufficientTargets}
	ErrGameNotActive           = &Error{Code: CodeGameNotActive}
	ErrNotHost                 = &Error{Code: CodeNotHost}
	ErrInvalidAction           = &Error{Code: CodeInvalidAction}
	ErrRoomNotFound            = &Error{Code: CodeRoomNotFound}
	ErrPlayerNotFound          = &Error{Code: CodePlayerNotFound}
	ErrMatchNotFound           = &Error{Code: CodeMatchNotFound}
	ErrRoomFull                = &Error{Code: CodeRoomFull}
	ErrNotEnoughPlayers        = &Error{Code: CodeNotEnoughPlayers}
	ErrAIDecisionFailed        = &Error{Code: CodeAIDecisionFailed}
)

// New creates an error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Category returns the category of the error code.
func (e *Error) Category() Category {
	return e.Code.Category()
}

// Is matches any *Error carrying the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// CodeOf extracts the code from err, or "" when err is not a rule engine error.
func CodeOf(err error) Code {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Code
	}
	return ""
}

// CategoryOf reports the category of err. ok is false for foreign errors.
func CategoryOf(err error) (Category, bool) {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Category(), true
	}
	return 0, false
}
