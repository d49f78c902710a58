package services

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// AuthService gates the admin role behind a single shared passcode. There
// are no user accounts: spectators read freely, score entry and tournament
// controls require a session minted from the passcode.
type AuthService interface {
	VerifyPasscode(passcode string) error
}

type authService struct {
	passcodeHash []byte
}

func NewAuthService(passcodeHash string) AuthService {
	return &authService{passcodeHash: []byte(passcodeHash)}
}

func (s *authService) VerifyPasscode(passcode string) error {
	if passcode == "" {
		return ErrInvalidPasscode
	}
	if err := bcrypt.CompareHashAndPassword(s.passcodeHash, []byte(passcode)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidPasscode
		}
		return err
	}
	return nil
}
