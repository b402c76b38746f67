package state

import "github.com/codeclash/codeclash-server/internal/game/cards"

// ModuleState is the protection state derived from a module's attachments.
type ModuleState string

const (
	ModuleFree       ModuleState = "FREE"
	ModulePatched    ModuleState = "PATCHED"
	ModuleBugged     ModuleState = "BUGGED"
	ModuleStabilized ModuleState = "STABILIZED"
)

// StabilizationThreshold is the patch count at which a module becomes immune to bugs.
const StabilizationThreshold = 2

// Module is a MODULE card in play with its attached bugs and patches.
type Module struct {
	Card    cards.Card   `json:"card"`
	State   ModuleState  `json:"state"`
	Bugs    []cards.Card `json:"bugs"`
	Patches []cards.Card `json:"patches"`
}

// NewModule wraps a freshly played MODULE card.
func NewModule(card cards.Card) *Module {
	return &Module{
		Card:    card,
		State:   ModuleFree,
		Bugs:    []cards.Card{},
		Patches: []cards.Card{},
	}
}

// ID returns the id of the underlying card.
func (m *Module) ID() string {
	return m.Card.ID
}

// Color returns the color of the underlying card.
func (m *Module) Color() cards.Color {
	return m.Card.Color
}

// IsStabilized reports whether the module is immune to bugs.
func (m *Module) IsStabilized() bool {
	return m.State == ModuleStabilized
}

// IsBugged reports whether at least one bug is attached.
func (m *Module) IsBugged() bool {
	return len(m.Bugs) > 0
}

// DeriveModuleState computes the state for the given attachment counts.
func DeriveModuleState(bugs, patches int) ModuleState {
	switch {
	case patches >= StabilizationThreshold:
		return ModuleStabilized
	case bugs > 0:
		return ModuleBugged
	case patches > 0:
		return ModulePatched
	default:
		return ModuleFree
	}
}

// Recompute refreshes State from the attachment counts.
func (m *Module) Recompute() {
	m.State = DeriveModuleState(len(m.Bugs), len(m.Patches))
}

// AttachBug adds a bug and recomputes state.
func (m *Module) AttachBug(bug cards.Card) {
	m.Bugs = append(m.Bugs, bug)
	m.Recompute()
}

// AttachPatch adds a patch and recomputes state.
func (m *Module) AttachPatch(patch cards.Card) {
	m.Patches = append(m.Patches, patch)
	m.Recompute()
}

// Clone returns a deep copy.
func (m *Module) Clone() *Module {
	return &Module{
		Card:    m.Card,
		State:   m.State,
		Bugs:    append([]cards.Card{}, m.Bugs...),
		Patches: append([]cards.Card{}, m.Patches...),
	}
}

// Cards returns the module card followed by every attachment, the order in
// which they are discarded when the module leaves play.
func (m *Module) Cards() []cards.Card {
	out := make([]cards.Card, 0, 1+len(m.Bugs)+len(m.Patches))
	out = append(out, m.Card)
	out = append(out, m.Bugs...)
	out = append(out, m.Patches...)
	return out
}
