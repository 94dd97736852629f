package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"openmarket/backend/internal/audit"
	"openmarket/backend/internal/security"
	"openmarket/backend/internal/session"
	sessiondomain "openmarket/backend/internal/session/domain"
	userdomain "openmarket/backend/internal/user/domain"
	userrepo "openmarket/backend/internal/user/repository"
)

// Sentinel errors for auth service; handler maps them to HTTP status codes.
var (
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrInvalidRefreshToken    = session.ErrInvalidRefreshToken
	ErrRefreshTokenReuse      = session.ErrRefreshTokenReuse
	ErrStoreUnavailable       = errors.New("store temporarily unavailable")
)

// ValidationError reports a rejected request field. Callers match with errors.As.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

// UserView is the caller-facing projection of a user. It never carries the password hash.
type UserView struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// AuthResult holds the outcome of Register, Login, or RefreshTokens: a token pair and the user view.
type AuthResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	User         UserView
}

// UserRepo is the minimal user repository needed by the auth service.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	GetByEmail(ctx context.Context, email string) (*userdomain.User, error)
	Create(ctx context.Context, u *userdomain.User) error
}

// SessionRegistry is the minimal session registry needed by the auth service.
type SessionRegistry interface {
	Issue(ctx context.Context, userID string) (*session.Issued, error)
	Rotate(ctx context.Context, token string) (*session.Issued, error)
	Find(ctx context.Context, token string) (*sessiondomain.Session, error)
	Revoke(ctx context.Context, token string) (*sessiondomain.Session, error)
	RevokeAllForUser(ctx context.Context, userID string) error
}

// AuthService implements register, login, refresh-token rotation, and logout.
// Persistence failures never leak to callers: anything that is not one of the
// package sentinels is mapped to ErrStoreUnavailable at this boundary.
type AuthService struct {
	userRepo     UserRepo
	sessions     SessionRegistry
	hasher       *security.Hasher
	tokens       *security.TokenProvider
	auditLogger  audit.AuditLogger
	storeTimeout time.Duration
}

// NewAuthService returns an AuthService with the given dependencies.
// auditLogger may be nil; then no audit events are recorded.
func NewAuthService(
	userRepo UserRepo,
	sessions SessionRegistry,
	hasher *security.Hasher,
	tokens *security.TokenProvider,
	auditLogger audit.AuditLogger,
	storeTimeout time.Duration,
) *AuthService {
	if storeTimeout <= 0 {
		storeTimeout = 3 * time.Second
	}
	return &AuthService{
		userRepo:     userRepo,
		sessions:     sessions,
		hasher:       hasher,
		tokens:       tokens,
		auditLogger:  auditLogger,
		storeTimeout: storeTimeout,
	}
}

// Register creates a user with the given email and password, opens its first
// refresh session, and returns a token pair. The new session is the root of
// the user's first lineage.
func (s *AuthService) Register(ctx context.Context, email, password, name string) (*AuthResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	hashed, err := s.hasher.Hash([]byte(password))
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	user := &userdomain.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hashed,
		Name:         strings.TrimSpace(name),
		Role:         userdomain.RoleUser,
		Status:       userdomain.UserStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	if err := s.userRepo.Create(sctx, user); err != nil {
		if errors.Is(err, userrepo.ErrDuplicateEmail) {
			return nil, ErrEmailAlreadyRegistered
		}
		return nil, s.storeErr(err)
	}
	sctx, cancel = s.storeCtx(ctx)
	issued, err := s.sessions.Issue(sctx, user.ID)
	cancel()
	if err != nil {
		return nil, s.storeErr(err)
	}
	accessToken, accessExp, err := s.tokens.IssueAccess(user.ID, string(user.Role))
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, user.ID, audit.ActionRegister, "session="+issued.Session.ID)
	return &AuthResult{
		AccessToken:  accessToken,
		RefreshToken: issued.Token,
		ExpiresAt:    accessExp,
		User:         viewOf(user),
	}, nil
}

// Login authenticates with email/password, opens a refresh session, and returns tokens.
// Unknown email and wrong password are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	sctx, cancel := s.storeCtx(ctx)
	user, err := s.userRepo.GetByEmail(sctx, email)
	cancel()
	if err != nil {
		return nil, s.storeErr(err)
	}
	if user == nil || user.Status != userdomain.UserStatusActive {
		s.logAudit(ctx, "", audit.ActionLoginFailure, "email="+email)
		return nil, ErrInvalidCredentials
	}
	if !s.hasher.Verify(user.PasswordHash, []byte(password)) {
		s.logAudit(ctx, user.ID, audit.ActionLoginFailure, "")
		return nil, ErrInvalidCredentials
	}
	sctx, cancel = s.storeCtx(ctx)
	issued, err := s.sessions.Issue(sctx, user.ID)
	cancel()
	if err != nil {
		return nil, s.storeErr(err)
	}
	accessToken, accessExp, err := s.tokens.IssueAccess(user.ID, string(user.Role))
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, user.ID, audit.ActionLoginSuccess, "session="+issued.Session.ID)
	return &AuthResult{
		AccessToken:  accessToken,
		RefreshToken: issued.Token,
		ExpiresAt:    accessExp,
		User:         viewOf(user),
	}, nil
}

// RefreshTokens exchanges a refresh token for a new pair. The presented token
// is consumed exactly once; reusing a consumed token revokes its whole
// lineage and returns ErrRefreshTokenReuse. The user's role is re-read so a
// role change takes effect on the next rotation.
func (s *AuthService) RefreshTokens(ctx context.Context, refreshToken string) (*AuthResult, error) {
	sctx, cancel := s.storeCtx(ctx)
	issued, err := s.sessions.Rotate(sctx, refreshToken)
	cancel()
	if err != nil {
		if errors.Is(err, session.ErrRefreshTokenReuse) {
			s.logAudit(ctx, "", audit.ActionRefreshReuse, "")
			return nil, ErrRefreshTokenReuse
		}
		if errors.Is(err, session.ErrInvalidRefreshToken) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, s.storeErr(err)
	}
	sctx, cancel = s.storeCtx(ctx)
	user, err := s.userRepo.GetByID(sctx, issued.Session.UserID)
	cancel()
	if err != nil {
		return nil, s.storeErr(err)
	}
	if user == nil || user.Status != userdomain.UserStatusActive {
		sctx, cancel = s.storeCtx(ctx)
		_, _ = s.sessions.Revoke(sctx, issued.Token)
		cancel()
		return nil, ErrInvalidRefreshToken
	}
	accessToken, accessExp, err := s.tokens.IssueAccess(user.ID, string(user.Role))
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, user.ID, audit.ActionTokenRefresh, "session="+issued.Session.ID)
	return &AuthResult{
		AccessToken:  accessToken,
		RefreshToken: issued.Token,
		ExpiresAt:    accessExp,
		User:         viewOf(user),
	}, nil
}

// Logout revokes the session for refreshToken, or every session of authUserID
// when no token is given. Always succeeds when nothing was active. When both a
// token and an authenticated subject are present and disagree, the revocation
// is skipped.
func (s *AuthService) Logout(ctx context.Context, refreshToken, authUserID string) error {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	if refreshToken != "" {
		sess, err := s.sessions.Find(sctx, refreshToken)
		if err != nil {
			if errors.Is(err, session.ErrInvalidRefreshToken) {
				return nil
			}
			return s.storeErr(err)
		}
		if authUserID != "" && sess.UserID != authUserID {
			return nil
		}
		if _, err := s.sessions.Revoke(sctx, refreshToken); err != nil {
			if errors.Is(err, session.ErrInvalidRefreshToken) {
				return nil
			}
			return s.storeErr(err)
		}
		s.logAudit(ctx, sess.UserID, audit.ActionLogout, "session="+sess.ID)
		return nil
	}
	if authUserID == "" {
		return nil
	}
	if err := s.sessions.RevokeAllForUser(sctx, authUserID); err != nil {
		return s.storeErr(err)
	}
	s.logAudit(ctx, authUserID, audit.ActionSessionsRevokedAll, "")
	return nil
}

func (s *AuthService) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.storeTimeout)
}

// storeErr maps persistence failures to ErrStoreUnavailable so raw driver
// errors never cross the service boundary.
func (s *AuthService) storeErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

func (s *AuthService) logAudit(ctx context.Context, userID, action, metadata string) {
	if s.auditLogger == nil {
		return
	}
	s.auditLogger.LogEvent(ctx, userID, action, "auth", metadata)
}

func viewOf(u *userdomain.User) UserView {
	return UserView{ID: u.ID, Email: u.Email, Name: u.Name, Role: string(u.Role)}
}

func validateEmail(email string) error {
	if email == "" {
		return &ValidationError{Field: "email", Msg: "email is required"}
	}
	const simpleEmail = `^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`
	ok, _ := regexp.MatchString(simpleEmail, email)
	if !ok {
		return &ValidationError{Field: "email", Msg: "invalid email format"}
	}
	return nil
}

func validatePassword(password string) error {
	if len([]rune(password)) < 8 {
		return &ValidationError{Field: "password", Msg: "password must be at least 8 characters"}
	}
	var hasUpper, hasLower, hasNumber, hasSymbol bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasNumber = true
		default:
			hasSymbol = true
		}
	}
	if !hasUpper {
		return &ValidationError{Field: "password", Msg: "password must contain at least one uppercase letter"}
	}
	if !hasLower {
		return &ValidationError{Field: "password", Msg: "password must contain at least one lowercase letter"}
	}
	if !hasNumber {
		return &ValidationError{Field: "password", Msg: "password must contain at least one number"}
	}
	if !hasSymbol {
		return &ValidationError{Field: "password", Msg: "password must contain at least one symbol"}
	}
	return nil
}
