// Package impl contains the implementation of the application's business logic.
package impl

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"academy/config"
	deliverycontext "academy/internal/delivery/context"
	"academy/internal/domain/entity"
	domainerrors "academy/internal/domain/errors"
	"academy/internal/domain/repository"
	"academy/internal/domain/service"
	"academy/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// Bounds for the login-activity listing.
const (
	defaultActivityLimit = 20
	maxActivityLimit     = 100
)

// authService implements the AuthUsecase interface.
type authService struct {
	txManager                 repository.TransactionManager
	userRepo                  repository.UserRepository
	authRepo                  repository.AuthRepository
	sessionRepo               repository.SessionRepository
	attemptRepo               repository.LoginAttemptRepository
	geoResolver               service.GeolocationResolver
	hasher                    service.PasswordHasher
	tokenService              service.TokenService
	googleAuthService         service.OAuthAuthService
	attemptRecorder           usecase.AttemptRecorder
	mailer                    service.Mailer
	sessionTTL                time.Duration
	discloseVerificationState bool
	logger                    *slog.Logger
}

// AuthServiceParams holds dependencies for authService, injected by Fx.
type AuthServiceParams struct {
	fx.In

	TxManager         repository.TransactionManager
	UserRepo          repository.UserRepository
	AuthRepo          repository.AuthRepository
	SessionRepo       repository.SessionRepository
	AttemptRepo       repository.LoginAttemptRepository
	GeoResolver       service.GeolocationResolver
	Hasher            service.PasswordHasher
	TokenService      service.TokenService
	GoogleAuthService service.OAuthAuthService
	AttemptRecorder   usecase.AttemptRecorder
	Mailer            service.Mailer
	Config            *config.Config
	Logger            *slog.Logger
}

// NewAuthService is the constructor for authService. It receives all dependencies as interfaces.
func NewAuthService(params AuthServiceParams) usecase.AuthUsecase {
	return &authService{
		txManager:                 params.TxManager,
		userRepo:                  params.UserRepo,
		authRepo:                  params.AuthRepo,
		sessionRepo:               params.SessionRepo,
		attemptRepo:               params.AttemptRepo,
		geoResolver:               params.GeoResolver,
		hasher:                    params.Hasher,
		tokenService:              params.TokenService,
		googleAuthService:         params.GoogleAuthService,
		attemptRecorder:           params.AttemptRecorder,
		mailer:                    params.Mailer,
		sessionTTL:                params.Config.Auth.SessionTTL,
		discloseVerificationState: params.Config.Auth.DiscloseVerificationState,
		logger:                    params.Logger,
	}
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (srv *authService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// normalizeEmail lowercases and trims the login identifier. Lookups and
// attempt rows always use the normalized form.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register orchestrates the account registration process.
func (srv *authService) Register(ctx context.Context, input usecase.RegisterInput) (*usecase.RegisterOutput, error) {
	email := normalizeEmail(input.Email)
	srv.log(ctx).Info("Starting registration", slog.String("email", email))

	if err := srv.hasher.ValidatePasswordStrength(input.Password); err != nil {
		srv.log(ctx).Warn("Password validation failed during registration", slog.String("email", email), slog.Any("error", err))

		return nil, err
	}

	// bcrypt is CPU-bound; hash outside the transaction.
	hashedPassword, err := srv.hasher.Hash(input.Password)
	if err != nil {
		return nil, errors.Wrap(err, "failed to hash password during registration")
	}

	var registeredUser *entity.User
	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		userRepo := repoFactory.UserRepo()
		authRepo := repoFactory.AuthRepo()

		_, findErr := authRepo.FindAuthentication(ctx, entity.ProviderTypeEmail, email)
		if findErr == nil {
			return domainerrors.ErrUserAlreadyExists.WrapMessage("email already registered")
		}
		if !errors.Is(findErr, repository.ErrAuthNotFound) {
			return errors.Wrap(findErr, "failed to check existing authentication")
		}

		newUser := &entity.User{
			Name:     input.Name,
			Email:    email,
			Status:   entity.UserStatusPending,
			Locale:   input.Locale,
			Timezone: input.Timezone,
		}
		if err := userRepo.Create(ctx, newUser); err != nil {
			return errors.Wrap(err, "failed to create user during registration")
		}

		newAuth := &entity.Authentication{
			UserID:         newUser.ID,
			Provider:       entity.ProviderTypeEmail,
			ProviderUserID: email,
			PasswordHash:   hashedPassword,
		}
		if err := authRepo.CreateAuthentication(ctx, newAuth); err != nil {
			return errors.Wrap(err, "failed to create authentication during registration")
		}

		registeredUser = newUser

		return nil
	})
	if err != nil {
		srv.log(ctx).Error("Failed to execute registration transaction", slog.String("email", email), slog.Any("error", err))

		return nil, err
	}

	srv.sendVerificationMail(ctx, registeredUser)

	srv.log(ctx).Info("Successfully registered account", slog.Any("userID", registeredUser.ID))

	return &usecase.RegisterOutput{User: registeredUser}, nil
}

// sendVerificationMail dispatches the verification link. Delivery is advisory:
// registration already committed, so failures are logged and dropped.
func (srv *authService) sendVerificationMail(ctx context.Context, user *entity.User) {
	verifyToken, err := srv.tokenService.IssueToken(user.ID, uuid.Nil)
	if err != nil {
		srv.log(ctx).Error("Failed to issue verification token", slog.Any("userID", user.ID), slog.Any("error", err))

		return
	}

	if err := srv.mailer.Send(ctx, user.Email, service.TemplateVerifyEmail, map[string]any{
		"name":  user.Name,
		"token": verifyToken,
	}); err != nil {
		srv.log(ctx).Error("Failed to send verification mail", slog.Any("userID", user.ID), slog.Any("error", err))
	}
}

// VerifyEmail activates a pending account from an emailed verification token.
// Verification tokens carry a nil session id, which distinguishes them from
// session tokens and keeps a login token from doubling as a verification link.
func (srv *authService) VerifyEmail(ctx context.Context, input usecase.VerifyEmailInput) error {
	claims, err := srv.tokenService.DecodeToken(input.Token)
	if err != nil {
		return domainerrors.ErrTokenInvalid.WrapMessage("invalid verification token")
	}
	if claims.SessionID != uuid.Nil {
		return domainerrors.ErrTokenInvalid.WrapMessage("not a verification token")
	}

	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		userRepo := repoFactory.UserRepo()

		user, err := userRepo.FindByID(ctx, claims.UserID)
		if err != nil {
			return errors.Wrap(err, "failed to load user for verification")
		}

		// Verifying twice is harmless.
		if user.EmailVerified && user.Status != entity.UserStatusPending {
			return nil
		}

		user.EmailVerified = true
		if user.Status == entity.UserStatusPending {
			user.Status = entity.UserStatusActive
		}

		return errors.Wrap(userRepo.Update(ctx, user), "failed to activate user")
	})
	if err != nil {
		srv.log(ctx).Error("Failed to verify email", slog.Any("userID", claims.UserID), slog.Any("error", err))

		return err
	}

	srv.log(ctx).Info("Successfully verified email", slog.Any("userID", claims.UserID))

	return nil
}

// Login orchestrates the password login process. Every call records exactly
// one login attempt; recording never changes the authentication outcome.
func (srv *authService) Login(ctx context.Context, input usecase.LoginInput) (*usecase.LoginOutput, error) {
	email := normalizeEmail(input.Email)
	srv.log(ctx).Debug("Starting login", slog.String("email", email))

	record := usecase.AttemptRecord{
		Email:         email,
		ClientContext: input.ClientContext,
		RequestID:     input.RequestID,
	}

	authRecord, err := srv.authRepo.FindAuthentication(ctx, entity.ProviderTypeEmail, email)
	if err != nil {
		if errors.Is(err, repository.ErrAuthNotFound) {
			return nil, srv.failLogin(ctx, record, entity.FailureReasonUserNotFound)
		}
		record.FailureReason = entity.FailureReasonUnknownError
		srv.attemptRecorder.Record(ctx, record)

		return nil, errors.Wrap(err, "failed to load authentication for login")
	}
	record.UserID = &authRecord.UserID

	user, err := srv.userRepo.FindByID(ctx, authRecord.UserID)
	if err != nil {
		record.FailureReason = entity.FailureReasonUnknownError
		srv.attemptRecorder.Record(ctx, record)

		return nil, errors.Wrap(err, "failed to load user for login")
	}

	if !user.Status.CanLogin() {
		failErr := srv.failLogin(ctx, record, entity.FailureReasonAccountNotActive)
		if srv.discloseVerificationState && user.Status == entity.UserStatusPending {
			// Deployments that opt in may tell the user to check their inbox
			// instead of hiding the account's existence.
			return nil, domainerrors.ErrAccountNotActive
		}

		return nil, failErr
	}

	if !authRecord.HasPassword() {
		return nil, srv.failLogin(ctx, record, entity.FailureReasonPasswordNotSet)
	}

	// bcrypt check runs outside any transaction (CPU-bound).
	if !srv.hasher.Check(input.Password, authRecord.PasswordHash) {
		return nil, srv.failLogin(ctx, record, entity.FailureReasonInvalidPassword)
	}

	return srv.completeLogin(ctx, user, record)
}

// failLogin records a failed attempt and returns the uniform credentials
// error. All credential-stage failures collapse into one externally visible
// answer so responses do not reveal which accounts exist.
func (srv *authService) failLogin(ctx context.Context, record usecase.AttemptRecord, reason entity.FailureReason) error {
	srv.log(ctx).Warn("Login failed",
		slog.String("email", record.Email),
		slog.String("reason", string(reason)))

	record.Success = false
	record.FailureReason = reason
	srv.attemptRecorder.Record(ctx, record)

	return domainerrors.ErrInvalidCredentials
}

// completeLogin creates the session, issues the token, and records the
// successful attempt. Session creation is the one post-credential step whose
// failure fails authentication: a login that cannot be revoked later must not
// succeed.
func (srv *authService) completeLogin(ctx context.Context, user *entity.User, record usecase.AttemptRecord) (*usecase.LoginOutput, error) {
	// Resolve the location before the session row is written, so the session
	// listing shows where the login came from even when no edge header carried
	// it. Best-effort; a failed lookup leaves the location empty.
	if record.ClientContext.Location.IsZero() && record.ClientContext.IPAddress != "" {
		loc, err := srv.geoResolver.Resolve(ctx, record.ClientContext.IPAddress)
		if err != nil {
			srv.log(ctx).Warn("Failed to resolve login location",
				slog.String("ip", record.ClientContext.IPAddress),
				slog.Any("error", err))
		} else {
			record.ClientContext.Location = loc
		}
	}

	now := time.Now()
	session := &entity.Session{
		ID:             uuid.New(),
		UserID:         user.ID,
		ClientContext:  record.ClientContext,
		ExpiresAt:      now.Add(srv.sessionTTL),
		LastActivityAt: now,
	}

	if err := srv.sessionRepo.CreateSession(ctx, session); err != nil {
		record.FailureReason = entity.FailureReasonUnknownError
		srv.attemptRecorder.Record(ctx, record)
		srv.log(ctx).Error("Failed to create session during login", slog.Any("userID", user.ID), slog.Any("error", err))

		return nil, errors.Wrap(err, "failed to create session during login")
	}

	token, err := srv.tokenService.IssueToken(user.ID, session.ID)
	if err != nil {
		// Roll the session back so no orphaned registry row lingers.
		if delErr := srv.sessionRepo.DeleteSession(ctx, session.ID); delErr != nil && !errors.Is(delErr, repository.ErrSessionNotFound) {
			srv.log(ctx).Error("Failed to clean up session after token failure", slog.Any("sessionID", session.ID), slog.Any("error", delErr))
		}
		record.FailureReason = entity.FailureReasonUnknownError
		srv.attemptRecorder.Record(ctx, record)

		return nil, errors.Wrap(err, "failed to issue token during login")
	}

	record.Success = true
	record.FailureReason = ""
	srv.attemptRecorder.Record(ctx, record)

	srv.log(ctx).Info("Successfully logged in",
		slog.Any("userID", user.ID),
		slog.Any("sessionID", session.ID))

	return &usecase.LoginOutput{
		Token:   token,
		User:    user,
		Session: session,
	}, nil
}

// OAuthLogin authenticates a provider-issued ID token. The account and the
// provider link are created on first sign-in; repeat and concurrent sign-ins
// converge on the same linked identity.
func (srv *authService) OAuthLogin(ctx context.Context, input usecase.OAuthLoginInput) (*usecase.LoginOutput, error) {
	oauthUser, err := srv.googleAuthService.VerifyIDToken(ctx, input.IDToken)
	if err != nil {
		srv.log(ctx).Warn("OAuth token verification failed", slog.Any("error", err))

		return nil, domainerrors.ErrOAuthTokenInvalid.WrapMessage(err.Error())
	}

	email := normalizeEmail(oauthUser.Email)
	record := usecase.AttemptRecord{
		Email:         email,
		ClientContext: input.ClientContext,
		RequestID:     input.RequestID,
	}

	var loggedInUser *entity.User
	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		user, err := srv.findOrCreateOAuthUser(ctx, repoFactory, oauthUser, email)
		if err != nil {
			return err
		}
		loggedInUser = user

		return nil
	})
	if err != nil {
		record.FailureReason = entity.FailureReasonUnknownError
		srv.attemptRecorder.Record(ctx, record)
		srv.log(ctx).Error("Failed to execute OAuth login transaction", slog.String("email", email), slog.Any("error", err))

		return nil, errors.Wrap(err, "failed to execute OAuth login transaction")
	}
	record.UserID = &loggedInUser.ID

	if !loggedInUser.Status.CanLogin() {
		return nil, srv.failLogin(ctx, record, entity.FailureReasonAccountNotActive)
	}

	return srv.completeLogin(ctx, loggedInUser, record)
}

// findOrCreateOAuthUser resolves the provider identity to a local account,
// creating both when this is the first sign-in. The upsert settles concurrent
// first sign-ins on one linked identity.
func (srv *authService) findOrCreateOAuthUser(ctx context.Context, repoFactory repository.RepositoryFactory, oauthUser *service.OAuthUser, email string) (*entity.User, error) {
	authRepo := repoFactory.AuthRepo()
	userRepo := repoFactory.UserRepo()

	authRecord, err := authRepo.FindAuthentication(ctx, oauthUser.Provider, oauthUser.ID)
	if err == nil {
		return srv.activateIfProviderVerified(ctx, userRepo, authRecord.UserID, oauthUser)
	}
	if !errors.Is(err, repository.ErrAuthNotFound) {
		return nil, errors.Wrap(err, "failed to find provider authentication")
	}

	// No link yet. Attach to an existing account with the same email, or
	// create a fresh one.
	user, err := userRepo.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		user = &entity.User{
			Name:          oauthUser.Name,
			Email:         email,
			Status:        entity.UserStatusActive,
			EmailVerified: oauthUser.EmailVerified,
			Locale:        oauthUser.Locale,
		}
		if createErr := userRepo.Create(ctx, user); createErr != nil {
			return nil, errors.Wrap(createErr, "failed to create user for OAuth login")
		}
		srv.log(ctx).Info("Created new account from OAuth sign-in", slog.Any("userID", user.ID))
	} else if err != nil {
		return nil, errors.Wrap(err, "failed to find user by email for OAuth login")
	}

	linked, err := authRepo.UpsertAuthentication(ctx, &entity.Authentication{
		UserID:         user.ID,
		Provider:       oauthUser.Provider,
		ProviderUserID: oauthUser.ID,
		AccessToken:    oauthUser.AccessToken,
		RefreshToken:   oauthUser.RefreshToken,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to link provider identity")
	}

	// A concurrent sign-in may have linked the identity to a different row.
	if linked.UserID != user.ID {
		return srv.activateIfProviderVerified(ctx, userRepo, linked.UserID, oauthUser)
	}

	return srv.activateIfProviderVerified(ctx, userRepo, user.ID, oauthUser)
}

// activateIfProviderVerified loads the account and promotes a pending account
// to active when the provider vouches for the email address.
func (srv *authService) activateIfProviderVerified(ctx context.Context, userRepo repository.UserRepository, userID uuid.UUID, oauthUser *service.OAuthUser) (*entity.User, error) {
	user, err := userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load user for OAuth login")
	}

	if oauthUser.EmailVerified && user.Status == entity.UserStatusPending {
		user.Status = entity.UserStatusActive
		user.EmailVerified = true
		if err := userRepo.Update(ctx, user); err != nil {
			return nil, errors.Wrap(err, "failed to activate user from provider verification")
		}
		srv.log(ctx).Info("Activated pending account via provider-verified email", slog.Any("userID", user.ID))
	}

	return user, nil
}

// Logout deletes the session backing the presented token. Possession of a
// valid token is the authorization; a session that is already gone still
// counts as a successful logout.
func (srv *authService) Logout(ctx context.Context, sessionID uuid.UUID) error {
	err := srv.sessionRepo.DeleteSession(ctx, sessionID)
	if err != nil && !errors.Is(err, repository.ErrSessionNotFound) {
		srv.log(ctx).Error("Failed to delete session during logout", slog.Any("sessionID", sessionID), slog.Any("error", err))

		return errors.Wrap(err, "failed to delete session during logout")
	}

	srv.log(ctx).Info("Successfully logged out", slog.Any("sessionID", sessionID))

	return nil
}

// UnlinkProvider removes one sign-in method from the account. The listing and
// the delete run in one transaction so two concurrent unlinks cannot strip the
// account of its last credential.
func (srv *authService) UnlinkProvider(ctx context.Context, userID uuid.UUID, provider entity.ProviderType) error {
	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		authRepo := repoFactory.AuthRepo()

		methods, err := authRepo.ListAuthenticationsByUserID(ctx, userID)
		if err != nil {
			return errors.Wrap(err, "failed to list sign-in methods")
		}
		if len(methods) <= 1 {
			return domainerrors.ErrLastAuthMethod
		}

		target, err := authRepo.FindAuthenticationByUserIDAndProvider(ctx, userID, provider)
		if err != nil {
			if errors.Is(err, repository.ErrAuthNotFound) {
				return domainerrors.ErrAuthMethodNotFound
			}

			return errors.Wrap(err, "failed to find sign-in method to unlink")
		}

		return errors.Wrap(authRepo.DeleteAuthentication(ctx, target.ID), "failed to unlink sign-in method")
	})
	if err != nil {
		srv.log(ctx).Warn("Failed to unlink provider",
			slog.Any("userID", userID),
			slog.String("provider", string(provider)),
			slog.Any("error", err))

		return err
	}

	srv.log(ctx).Info("Successfully unlinked provider",
		slog.Any("userID", userID),
		slog.String("provider", string(provider)))

	return nil
}

// RecentActivity returns the newest attempts recorded against the account's
// email. Failures against the email before the account existed, or from
// someone probing the password, show up here too; that is the point of the
// surface.
func (srv *authService) RecentActivity(ctx context.Context, userID uuid.UUID, limit int) ([]*entity.LoginAttempt, error) {
	if limit <= 0 || limit > maxActivityLimit {
		limit = defaultActivityLimit
	}

	user, err := srv.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load user for activity listing")
	}

	attempts, err := srv.attemptRepo.FindRecentByEmail(ctx, normalizeEmail(user.Email), limit)
	if err != nil {
		srv.log(ctx).Error("Failed to list login activity", slog.Any("userID", userID), slog.Any("error", err))

		return nil, errors.Wrap(err, "failed to list login activity")
	}

	return attempts, nil
}
