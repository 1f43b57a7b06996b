package carioca

import "errors"

// Rejections. Each leaves the match untouched.
var (
	// Turn and phase.
	ErrNotPlaying   = errors.New("game is not playing")
	ErrNoActiveTurn = errors.New("no active turn")
	ErrNotYourTurn  = errors.New("not your turn")
	ErrWrongPhase   = errors.New("invalid phase")

	// Empty piles.
	ErrCannotReshuffle = errors.New("deck empty and not enough cards in discard to reshuffle")
	ErrDiscardEmpty    = errors.New("discard pile empty")

	// Card ownership.
	ErrCardNotInHand = errors.New("card not in your hand")
	ErrCardReused    = errors.New("a card was used more than once")
	ErrMustKeepCard  = errors.New("you must keep a card to discard")

	// Rules.
	ErrAlreadyLaidDown   = errors.New("you already laid down this round")
	ErrContractMismatch  = errors.New("melds do not match the contract")
	ErrMeldSize          = errors.New("wrong number of cards in meld")
	ErrInvalidMeldType   = errors.New("meld type must be SET or RUN")
	ErrInvalidSet        = errors.New("invalid SET")
	ErrInvalidRun        = errors.New("invalid RUN")
	ErrNoMelds           = errors.New("no melds")
	ErrNoCards           = errors.New("no cards selected")
	ErrNotLaidDown       = errors.New("you must lay down the contract first")
	ErrLayoffTooEarly    = errors.New("you can extend melds once every player has had a turn since your lay-down")
	ErrTargetNotLaidDown = errors.New("target player has not laid down yet")
	ErrUnknownPlayer     = errors.New("player not found")
	ErrMeldNotFound      = errors.New("meld not found")

	// Wire decoding.
	ErrUnknownAction = errors.New("unknown action type")
	ErrBadPayload    = errors.New("invalid action payload")
)
