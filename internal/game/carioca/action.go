package carioca

import (
	"encoding/json"
	"fmt"

	"carioca/internal/game"
)

// ActionType names an action on the wire.
type ActionType string

const (
	ActionDrawDeck    ActionType = "DRAW_DECK"
	ActionDrawDiscard ActionType = "DRAW_DISCARD"
	ActionLaydown     ActionType = "LAYDOWN"
	ActionMeldExtra   ActionType = "MELD_EXTRA"
	ActionLayoff      ActionType = "LAYOFF"
	ActionEndMeld     ActionType = "END_MELD"
	ActionDiscard     ActionType = "DISCARD"
)

// Action is the closed set of moves a player can make. Only the types in
// this file implement it.
type Action interface {
	Type() ActionType
	isAction()
}

// DrawDeck takes the top card of the deck.
type DrawDeck struct{}

// DrawDiscard takes the top card of the discard pile.
type DrawDiscard struct{}

// Laydown places the contract melds for the current round.
type Laydown struct {
	Melds []MeldSpec `json:"melds"`
}

// MeldExtra places additional melds after the contract is down.
type MeldExtra struct {
	Melds []MeldSpec `json:"melds"`
}

// Layoff adds hand cards to a meld already on the table.
type Layoff struct {
	TargetPlayerID string   `json:"targetPlayerId"`
	MeldID         string   `json:"meldId"`
	CardIDs        []string `json:"cardIds"`
}

// EndMeld moves on to the discard phase.
type EndMeld struct{}

// Discard ends the turn by putting one card on the discard pile.
type Discard struct {
	CardID string `json:"cardId"`
}

func (DrawDeck) Type() ActionType    { return ActionDrawDeck }
func (DrawDiscard) Type() ActionType { return ActionDrawDiscard }
func (Laydown) Type() ActionType     { return ActionLaydown }
func (MeldExtra) Type() ActionType   { return ActionMeldExtra }
func (Layoff) Type() ActionType      { return ActionLayoff }
func (EndMeld) Type() ActionType     { return ActionEndMeld }
func (Discard) Type() ActionType     { return ActionDiscard }

func (DrawDeck) isAction()    {}
func (DrawDiscard) isAction() {}
func (Laydown) isAction()     {}
func (MeldExtra) isAction()   {}
func (Layoff) isAction()      {}
func (EndMeld) isAction()     {}
func (Discard) isAction()     {}

// DecodeAction turns a wire envelope into a typed action.
func DecodeAction(a game.Action) (Action, error) {
	switch ActionType(a.Type) {
	case ActionDrawDeck:
		return DrawDeck{}, nil
	case ActionDrawDiscard:
		return DrawDiscard{}, nil
	case ActionEndMeld:
		return EndMeld{}, nil
	case ActionLaydown:
		var v Laydown
		if err := decodePayload(a, &v); err != nil {
			return nil, err
		}
		return v, nil
	case ActionMeldExtra:
		var v MeldExtra
		if err := decodePayload(a, &v); err != nil {
			return nil, err
		}
		return v, nil
	case ActionLayoff:
		var v Layoff
		if err := decodePayload(a, &v); err != nil {
			return nil, err
		}
		return v, nil
	case ActionDiscard:
		var v Discard
		if err := decodePayload(a, &v); err != nil {
			return nil, err
		}
		return v, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, a.Type)
	}
}

func decodePayload(a game.Action, v any) error {
	if len(a.Payload) == 0 {
		return fmt.Errorf("%w: %s needs a payload", ErrBadPayload, a.Type)
	}
	if err := json.Unmarshal(a.Payload, v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	return nil
}

// EncodeAction is the inverse of DecodeAction.
func EncodeAction(a Action) game.Action {
	out := game.Action{Type: string(a.Type())}
	switch a.(type) {
	case Laydown, MeldExtra, Layoff, Discard:
		payload, err := json.Marshal(a)
		if err != nil {
			panic(fmt.Sprintf("carioca: encode %s: %v", a.Type(), err))
		}
		out.Payload = payload
	}
	return out
}
