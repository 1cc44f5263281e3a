package domain

import "context"

// AuthStage is one step of the staged sign-in wizard.
type AuthStage string

const (
	StageStart         AuthStage = "start"
	StageEmail         AuthStage = "email"
	StageOTP           AuthStage = "otp"
	StageAuthenticated AuthStage = "authenticated"
)

// User identifies a signed-in account.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// AuthSession is the signed-in state produced by OTP verification.
// No query reaches the channel while Stage != StageAuthenticated.
type AuthSession struct {
	Stage        AuthStage `json:"stage"`
	Email        string    `json:"email"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	User         *User     `json:"user,omitempty"`
}

// Authenticated reports whether the session gates queries open.
func (s *AuthSession) Authenticated() bool {
	return s != nil && s.Stage == StageAuthenticated && s.AccessToken != ""
}

// AuthProvider is the opaque OTP sign-in capability.
type AuthProvider interface {
	// SignInWithOTP requests a one-time code be sent to email.
	SignInWithOTP(ctx context.Context, email string) error
	// VerifyOTP exchanges email+code for a session. Returns ErrAuthInvalid
	// (possibly wrapped) when the code is rejected.
	VerifyOTP(ctx context.Context, email, code string) (*AuthSession, error)
	// ValidateSession checks a persisted access token against the provider.
	ValidateSession(ctx context.Context, accessToken string) (*User, error)
}
