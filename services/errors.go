package services

import "errors"

// Shared service errors, mapped to HTTP statuses in the handlers package.
var (
	ErrNotFound      = errors.New("requested resource not found")
	ErrTeamNotFound  = errors.New("team not found")
	ErrMatchNotFound = errors.New("match not found")

	// Validation and business rules
	ErrTeamNameRequired   = errors.New("team name is required")
	ErrRosterSizeInvalid  = errors.New("a team must have exactly two players")
	ErrPlayerNameRequired = errors.New("player names must not be empty")
	ErrRegistrationClosed = errors.New("team registration is closed")
	ErrNegativeScore      = errors.New("scores cannot be negative")
	ErrTiedScore          = errors.New("a completed match cannot end in a tie")
	ErrInvalidPhase       = errors.New("invalid tournament phase")

	// Scheduling and bracket rules
	ErrNotEnoughTeamsForPool  = errors.New("at least four teams are required to generate a pool-play schedule")
	ErrInvalidMinGames        = errors.New("minimum games per team must be at least 1")
	ErrNoCompletedPoolMatches = errors.New("complete at least one pool-play match before starting the knockout bracket")
	ErrKnockoutAlreadyStarted = errors.New("the knockout bracket has already been generated")

	// Conflicts
	ErrTeamNameConflict = errors.New("team name is already taken")
	ErrTeamNotPending   = errors.New("team registration is not pending")

	// Auth
	ErrInvalidPasscode = errors.New("invalid admin passcode")

	// Uploads
	ErrUnsupportedLogoType = errors.New("logo must be a png, jpeg or webp image")
)
