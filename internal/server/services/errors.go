package services

import "errors"

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrUsernameTaken    = errors.New("username taken")
	ErrSignupClosed     = errors.New("signup closed")
	ErrRoundOver        = errors.New("round is over")
	ErrTooManyEmpires   = errors.New("empire limit reached")
	ErrInvalidState     = errors.New("not allowed in the empire's current state")
	ErrBonusDisabled    = errors.New("bonus turns are disabled")
	ErrBonusClaimed     = errors.New("bonus turns already claimed today")
	ErrVacationTooShort = errors.New("vacation has not reached its minimum length")
)

// LoginCode identifies why a login was refused.
type LoginCode string

const (
	LoginNeedUsername   LoginCode = "need_username"
	LoginNeedPassword   LoginCode = "need_password"
	LoginBadInput       LoginCode = "bad_input"
	LoginUserNotFound   LoginCode = "user_not_found"
	LoginBadPassword    LoginCode = "incorrect_password"
	LoginUserClosed     LoginCode = "user_closed"
	LoginNoEmpire       LoginCode = "no_empire"
	LoginNoEmpireClosed LoginCode = "no_empire_closed"
	LoginNeedSignup     LoginCode = "need_signup"
	LoginEmpireNotFound LoginCode = "empire_not_found"
	LoginBusy           LoginCode = "busy"
	LoginThrottled      LoginCode = "throttled"
)

var loginMessages = map[LoginCode]string{
	LoginNeedUsername:   "You must enter a username.",
	LoginNeedPassword:   "You must enter a password.",
	LoginBadInput:       "Username and password must not start or end with spaces.",
	LoginUserNotFound:   "No account exists with that username.",
	LoginBadPassword:    "The password you entered is incorrect.",
	LoginUserClosed:     "That account has been closed.",
	LoginNoEmpire:       "You do not have an empire in this round.",
	LoginNoEmpireClosed: "You do not have an empire and new empires may not be created at this time.",
	LoginNeedSignup:     "You do not have an empire yet. Please sign up.",
	LoginEmpireNotFound: "Empire not found.",
	LoginBusy:           "Your account is busy. Please try again in a moment.",
	LoginThrottled:      "Too many login attempts. Please wait and try again.",
}

// LoginError is a refused login. Message is safe to show to the player.
type LoginError struct {
	Code    LoginCode
	Message string
}

func (e *LoginError) Error() string { return e.Message }

func loginError(code LoginCode) *LoginError {
	return &LoginError{Code: code, Message: loginMessages[code]}
}
