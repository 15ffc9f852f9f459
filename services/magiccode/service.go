package magiccode

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/tech-arch1tect/magiccode/config"
	"github.com/tech-arch1tect/magiccode/services/flood"
	"github.com/tech-arch1tect/magiccode/services/logging"
	"go.uber.org/zap"
)

// Flood event names. The IP and user counters are independent: the IP
// counter catches one address spraying codes across many users, the
// user counter protects a single account.
const (
	FloodEventIP   = "magiccode.failed_verification_ip"
	FloodEventUser = "magiccode.failed_verification_user"
)

// OperationLogin is the operation whose login-mode consumption fully
// revokes the code, since it has no further purpose after a login.
const OperationLogin = "login"

var (
	// ErrDuplicateCode means unique code generation exhausted its
	// attempt budget. Transient: the caller should retry the whole
	// issuance.
	ErrDuplicateCode = errors.New("magic code value must be unique")

	ErrUserNotFound   = errors.New("user not found")
	ErrClientNotFound = errors.New("client not found")
)

// DirectoryUser is the slice of a user record the service needs.
type DirectoryUser struct {
	ID       uint
	Username string
	Email    string
}

// RegisteredClient is a client application codes are bound to.
type RegisteredClient struct {
	ID        uint
	ClientID  string
	Label     string
	IsDefault bool
}

// UserDirectory resolves user ids to their email address.
type UserDirectory interface {
	LookupUser(id uint) (*DirectoryUser, error)
}

// ClientRegistry resolves client applications.
type ClientRegistry interface {
	LookupClient(id uint) (*RegisteredClient, error)
	DefaultClientForUser(userID uint) (*RegisteredClient, error)
	ClientsForUser(userID uint) ([]RegisteredClient, error)
}

// Service issues, verifies and revokes magic codes.
type Service struct {
	config    *config.Config
	store     Store
	flood     flood.Guard
	users     UserDirectory
	clients   ClientRegistry
	generator *Generator
	logger    *logging.Service
}

func NewService(
	cfg *config.Config,
	store Store,
	floodGuard flood.Guard,
	users UserDirectory,
	clients ClientRegistry,
	logger *logging.Service,
) *Service {
	if logger != nil {
		logger.Info("initializing magic code service",
			zap.Duration("code_ttl", cfg.MagicCode.CodeTTL),
			zap.Strings("login_permitted_operations", cfg.MagicCode.LoginPermittedOperations),
			zap.Int("code_length", cfg.MagicCode.CodeLength))
	}

	return &Service{
		config:    cfg,
		store:     store,
		flood:     floodGuard,
		users:     users,
		clients:   clients,
		generator: NewGenerator(cfg.MagicCode.CodeAlphabet, cfg.MagicCode.CodeLength),
		logger:    logger,
	}
}

// Issue creates a new magic code for the (user, client, email,
// operation) tuple. An empty email resolves to the user's directory
// address; a zero clientID resolves to the default client for the
// user. Returns ErrDuplicateCode when unique generation gives up; the
// caller should retry issuance from scratch.
func (s *Service) Issue(operation string, userID, clientID uint, email string) (*MagicCode, error) {
	client, err := s.resolveClient(userID, clientID)
	if err != nil {
		return nil, err
	}

	targetEmail := email
	if targetEmail == "" {
		user, err := s.users.LookupUser(userID)
		if err != nil {
			return nil, err
		}
		targetEmail = user.Email
	}

	value, err := s.createUniqueCode()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	code := &MagicCode{
		OwnerUserID:  userID,
		ClientID:     client.ID,
		Email:        targetEmail,
		Operation:    operation,
		Value:        value,
		ExpiresAt:    now.Add(s.config.MagicCode.CodeTTL).Unix(),
		Status:       true,
		LoginAllowed: slices.Contains(s.config.MagicCode.LoginPermittedOperations, operation),
	}

	if err := s.store.Create(code); err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Info("magic code issued",
			zap.Uint("user_id", userID),
			zap.Uint("client_id", client.ID),
			zap.String("operation", operation),
			zap.Bool("login_allowed", code.LoginAllowed),
			zap.Int64("expires_at", code.ExpiresAt))
	}

	return code, nil
}

// Verify runs the verification state machine for one attempt.
//
// The IP flood check runs strictly before the user check. A blocked IP
// registers only an IP-level event; evaluating or registering a
// user-level event there would let an already-blocked attacker exhaust
// a victim's user budget. A blocked user still costs one IP event. On
// success only the user counter is cleared: an attacker spraying many
// users from one IP must not get the IP budget back from any single
// legitimate success.
//
// A zero clientID and an empty email resolve the same way Issue
// resolves them, so a caller verifying with defaults matches a code
// issued with defaults.
//
// All mismatch reasons collapse into ResultInvalid. A non-nil error
// means the flood or record backend failed; retry policy for that
// belongs to the caller.
func (s *Service) Verify(value, operation string, mode Mode, userID, clientID uint, email, ip string) (Result, error) {
	floodCfg := s.config.Flood
	identifier := strconv.FormatUint(uint64(userID), 10)

	allowed, err := s.flood.IsAllowed(FloodEventIP, floodCfg.IPLimit, floodCfg.IPWindow, ip)
	if err != nil {
		return ResultInvalid, fmt.Errorf("flood check failed: %w", err)
	}
	if !allowed {
		if err := s.flood.Register(FloodEventIP, floodCfg.IPWindow, ip); err != nil {
			return ResultInvalid, fmt.Errorf("flood registration failed: %w", err)
		}

		if s.logger != nil {
			s.logger.Warn("magic code verification failed, IP blocked",
				zap.Uint("user_id", userID))
		}

		return ResultBlockedByIP, nil
	}

	allowed, err = s.flood.IsAllowed(FloodEventUser, floodCfg.UserLimit, floodCfg.UserWindow, identifier)
	if err != nil {
		return ResultInvalid, fmt.Errorf("flood check failed: %w", err)
	}
	if !allowed {
		// The attempt still costs against the IP budget.
		if err := s.flood.Register(FloodEventIP, floodCfg.IPWindow, ip); err != nil {
			return ResultInvalid, fmt.Errorf("flood registration failed: %w", err)
		}

		if s.logger != nil {
			s.logger.Warn("magic code verification failed, user blocked",
				zap.Uint("user_id", userID))
		}

		return ResultBlockedByUser, nil
	}

	client, err := s.resolveClient(userID, clientID)
	if err != nil {
		return ResultInvalid, err
	}

	targetEmail := email
	if targetEmail == "" {
		user, err := s.users.LookupUser(userID)
		if err != nil {
			return ResultInvalid, err
		}
		targetEmail = user.Email
	}

	revokeLogin := mode == ModeLogin
	revoke := mode != ModeLogin || operation == OperationLogin

	code, err := s.store.ConsumeMatch(VerificationFilter{
		Value:        value,
		OwnerUserID:  userID,
		ClientID:     client.ID,
		Email:        targetEmail,
		Operation:    operation,
		RequireLogin: mode == ModeLogin,
		Now:          time.Now(),
	}, revokeLogin, revoke)
	if err != nil {
		return ResultInvalid, err
	}

	if code == nil {
		if err := s.flood.Register(FloodEventIP, floodCfg.IPWindow, ip); err != nil {
			return ResultInvalid, fmt.Errorf("flood registration failed: %w", err)
		}
		if err := s.flood.Register(FloodEventUser, floodCfg.UserWindow, identifier); err != nil {
			return ResultInvalid, fmt.Errorf("flood registration failed: %w", err)
		}

		if s.logger != nil {
			s.logger.Warn("magic code not found for user",
				zap.Uint("user_id", userID),
				zap.String("operation", operation))
		}

		return ResultInvalid, nil
	}

	if err := s.flood.Clear(FloodEventUser, identifier); err != nil {
		return ResultInvalid, fmt.Errorf("flood clear failed: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("magic code verified",
			zap.Uint("user_id", userID),
			zap.Uint("code_id", code.ID),
			zap.String("operation", operation),
			zap.String("mode", mode.String()))
	}

	return ResultSuccess, nil
}

// Revoke marks the code with the given id as revoked. A missing id is
// a no-op: already absent is treated as already revoked.
func (s *Service) Revoke(id uint) error {
	code, err := s.store.Load(id)
	if err != nil {
		return err
	}
	if code == nil {
		return nil
	}

	if err := s.store.Save(code.Revoke()); err != nil {
		return err
	}

	if s.logger != nil {
		s.logger.Info("magic code revoked", zap.Uint("code_id", id))
	}

	return nil
}

// RevokeMultiple revokes each id independently; a failure on one id
// does not block processing the rest.
func (s *Service) RevokeMultiple(ids []uint) error {
	var errs []error

	for _, id := range ids {
		if err := s.Revoke(id); err != nil {
			if s.logger != nil {
				s.logger.Error("failed to revoke magic code",
					zap.Uint("code_id", id),
					zap.Error(err))
			}
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (s *Service) resolveClient(userID, clientID uint) (*RegisteredClient, error) {
	if clientID == 0 {
		return s.clients.DefaultClientForUser(userID)
	}
	return s.clients.LookupClient(clientID)
}

// createUniqueCode generates candidates until one is unused, bounded
// so a store outage or a pathological collision run fails fast instead
// of looping forever.
func (s *Service) createUniqueCode() (string, error) {
	for attempt := 0; attempt < s.config.MagicCode.MaxGenerationAttempts; attempt++ {
		value, err := s.generator.Generate()
		if err != nil {
			return "", err
		}

		count, err := s.store.CountByValue(value)
		if err != nil {
			return "", err
		}

		if count == 0 {
			return value, nil
		}
	}

	return "", ErrDuplicateCode
}
