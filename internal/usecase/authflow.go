package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"deskmate/internal/domain"
)

// AuthFlow is the staged sign-in wizard gating all remote queries:
// start → email → otp → authenticated. Any verification failure resets to
// start rather than retrying the same stage, so the flow never sits in an
// ambiguous partial state.
type AuthFlow struct {
	mu       sync.Mutex
	provider domain.AuthProvider
	store    domain.SessionStore
	logger   *slog.Logger

	stage   domain.AuthStage
	email   string
	session *domain.AuthSession
}

// NewAuthFlow creates a flow in the start stage.
func NewAuthFlow(provider domain.AuthProvider, store domain.SessionStore, logger *slog.Logger) *AuthFlow {
	return &AuthFlow{
		provider: provider,
		store:    store,
		logger:   logger,
		stage:    domain.StageStart,
	}
}

// Authenticated reports whether queries may reach the channel.
func (f *AuthFlow) Authenticated() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session.Authenticated()
}

// Stage returns the current wizard stage.
func (f *AuthFlow) Stage() domain.AuthStage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stage
}

// User returns the signed-in user, or nil.
func (f *AuthFlow) User() *domain.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.session == nil {
		return nil
	}
	return f.session.User
}

// Handle consumes one line of user input at the current stage.
// Auth-stage input never counts against the usage quota.
func (f *AuthFlow) Handle(ctx context.Context, query string, push domain.EventPusher) error {
	f.mu.Lock()
	stage := f.stage
	f.mu.Unlock()

	switch stage {
	case domain.StageStart:
		push(domain.UIEvent{Type: domain.UIText, Content: "Please sign in. Enter your email to continue."})
		f.setStage(domain.StageEmail)
		return nil

	case domain.StageEmail:
		return f.handleEmail(ctx, query, push)

	case domain.StageOTP:
		return f.handleOTP(ctx, query, push)

	default:
		return domain.NewDomainError("AuthFlow.Handle", domain.ErrInvalidInput,
			fmt.Sprintf("unexpected stage %q", stage))
	}
}

func (f *AuthFlow) handleEmail(ctx context.Context, query string, push domain.EventPusher) error {
	email := strings.TrimSpace(query)

	if err := f.provider.SignInWithOTP(ctx, email); err != nil {
		f.logger.Warn("otp sign-in failed", "error", err)
		push(domain.UIEvent{Type: domain.UIText, Content: "Invalid email! Please try again from the start."})
		f.reset()
		return nil
	}

	f.mu.Lock()
	f.email = email
	f.stage = domain.StageOTP
	f.mu.Unlock()

	push(domain.UIEvent{Type: domain.UIText, Content: "Please enter the 6-digit code sent to your email."})
	return nil
}

func (f *AuthFlow) handleOTP(ctx context.Context, query string, push domain.EventPusher) error {
	code := strings.TrimSpace(query)

	f.mu.Lock()
	email := f.email
	f.mu.Unlock()

	session, err := f.provider.VerifyOTP(ctx, email, code)
	if err != nil || session == nil || session.User == nil {
		if err != nil && !errors.Is(err, domain.ErrAuthInvalid) {
			f.logger.Warn("otp verification failed", "error", err)
		}
		push(domain.UIEvent{Type: domain.UIText, Content: "Invalid code! Please try again from the start."})
		f.reset()
		return nil
	}

	session.Stage = domain.StageAuthenticated
	session.Email = email

	f.mu.Lock()
	f.session = session
	f.stage = domain.StageAuthenticated
	f.mu.Unlock()

	if err := f.store.SaveSession(domain.SessionRecord{
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		User:         *session.User,
	}); err != nil {
		// Signed in for this run even if persistence failed.
		f.logger.Warn("session persist failed", "error", err)
	}

	push(domain.UIEvent{Type: domain.UIText, Content: "Signed in! Hello, " + session.User.Email + "!"})
	return nil
}

// Restore loads a persisted session on startup and validates it against the
// provider. A failed validation clears the stored record and resets to start.
func (f *AuthFlow) Restore(ctx context.Context) error {
	rec, err := f.store.LoadSession()
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil
		}
		return fmt.Errorf("load session: %w", err)
	}

	user, err := f.provider.ValidateSession(ctx, rec.AccessToken)
	if err != nil {
		f.logger.Info("persisted session invalid, clearing", "error", err)
		if clearErr := f.store.ClearSession(); clearErr != nil {
			f.logger.Warn("session clear failed", "error", clearErr)
		}
		f.reset()
		return nil
	}

	f.mu.Lock()
	f.session = &domain.AuthSession{
		Stage:        domain.StageAuthenticated,
		Email:        user.Email,
		AccessToken:  rec.AccessToken,
		RefreshToken: rec.RefreshToken,
		User:         user,
	}
	f.stage = domain.StageAuthenticated
	f.mu.Unlock()

	f.logger.Info("session restored", "email", user.Email)
	return nil
}

// Logout clears the in-memory and persisted session and resets to start.
func (f *AuthFlow) Logout(_ context.Context) error {
	f.reset()
	if err := f.store.ClearSession(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

func (f *AuthFlow) setStage(stage domain.AuthStage) {
	f.mu.Lock()
	f.stage = stage
	f.mu.Unlock()
}

func (f *AuthFlow) reset() {
	f.mu.Lock()
	f.stage = domain.StageStart
	f.email = ""
	f.session = nil
	f.mu.Unlock()
}
