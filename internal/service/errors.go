package service

import (
	"database/sql"
	"errors"
	"fmt"
)

// Error classes surfaced to callers. Everything returned by the services
// wraps exactly one of these.
var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
	ErrStorage    = errors.New("storage failure")
)

var (
	ErrTournamentNotFound = fmt.Errorf("tournament %w", ErrNotFound)
	ErrMatchNotFound      = fmt.Errorf("match %w", ErrNotFound)

	ErrNameRequired      = fmt.Errorf("%w: tournament name is required", ErrValidation)
	ErrInvalidType       = fmt.Errorf("%w: unknown tournament type", ErrValidation)
	ErrNoParticipants    = fmt.Errorf("%w: at least one participant is required", ErrValidation)
	ErrParticipantName   = fmt.Errorf("%w: participant name is required", ErrValidation)
	ErrInvalidTransition = fmt.Errorf("%w: invalid tournament status transition", ErrValidation)
	ErrNotLive           = fmt.Errorf("%w: tournament is not live", ErrValidation)
	ErrBracketUnfinished = fmt.Errorf("%w: not every deciding match has a winner", ErrValidation)
	ErrMatchNotReady     = fmt.Errorf("%w: match does not have two participants yet", ErrValidation)
	ErrWinnerNotInMatch  = fmt.Errorf("%w: winner is not part of this match", ErrValidation)
	ErrWalkover          = fmt.Errorf("%w: walkover matches are decided automatically", ErrValidation)
)

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}

// lookupErr maps a missing row to notFound and anything else to a storage failure.
func lookupErr(notFound error, op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	return storageErr(op, err)
}
