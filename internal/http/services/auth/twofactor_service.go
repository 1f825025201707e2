package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/accountd/internal/audit"
	"github.com/dropDatabas3/accountd/internal/domain/repository"
	"github.com/dropDatabas3/accountd/internal/metrics"
	"github.com/dropDatabas3/accountd/internal/observability/logger"
	"github.com/dropDatabas3/accountd/internal/security/secretbox"
	"github.com/dropDatabas3/accountd/internal/security/totp"
	"github.com/dropDatabas3/accountd/internal/session"
)

// TwoFactorService maneja el ciclo de vida TOTP y el challenge post-login.
type TwoFactorService interface {
	// Enable genera un secreto nuevo sin confirmar. No activa el gate todavía.
	Enable(ctx context.Context, userID string) error
	// Confirm verifica code contra el secreto pendiente, fija confirmed_at y crea los recovery codes.
	Confirm(ctx context.Context, sessionID, userID, code string) error
	// Disable borra secreto, confirmación y recovery codes juntos. Requiere password fresca.
	Disable(ctx context.Context, sessionID, userID, plain string) error

	QRCode(ctx context.Context, userID string) (string, error)
	SecretKey(ctx context.Context, userID string) (string, error)
	RecoveryCodes(ctx context.Context, userID string) ([]string, error)
	// RegenerateRecoveryCodes reemplaza el set entero. Requiere password fresca.
	RegenerateRecoveryCodes(ctx context.Context, sessionID, userID, plain string) ([]string, error)
	Status(ctx context.Context, userID string) (*TwoFactorStatus, error)

	// VerifyRecoveryCode consume code si pertenece al set. false sin error = no coincide.
	VerifyRecoveryCode(ctx context.Context, userID, code string) (bool, error)

	// Challenge deja el challenge pendiente en la sesión.
	Challenge(ctx context.Context, sessionID, userID string, remember bool) error
	// Pending devuelve el challenge en curso o ErrNoPendingChallenge.
	Pending(ctx context.Context, sessionID string) (*session.TwoFactorPending, error)
	// Verify completa el challenge con un código TOTP o un recovery code.
	Verify(ctx context.Context, sessionID string, in VerifyInput) (*Establishment, error)

	// Enabled es la consulta cacheada del gate.
	Enabled(ctx context.Context, userID string) (bool, error)
}

type TwoFactorStatus struct {
	Enabled                bool
	Confirmed              bool
	RecoveryCodesRemaining int
}

// VerifyInput: si RecoveryCode viene vacío, Code también se prueba como recovery code.
type VerifyInput struct {
	Code         string
	RecoveryCode string
}

type TwoFactorDeps struct {
	Users       repository.UserRepository
	Repo        repository.TwoFactorRepository
	Secrets     secretbox.SecretStore
	Sessions    *session.Manager
	Confirm     PasswordConfirmService
	Flag        *twoFactorFlag
	Establisher *establisher
	Metrics     *metrics.Metrics
	Config      Config
	Now         func() time.Time
}

type twoFactorService struct {
	deps TwoFactorDeps
}

// Reintentos ante ErrStale en el swap de recovery codes.
const recoverySwapAttempts = 3

func NewTwoFactorService(deps TwoFactorDeps) TwoFactorService {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	deps.Config.applyDefaults()
	return &twoFactorService{deps: deps}
}

func (s *twoFactorService) Enable(ctx context.Context, userID string) error {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("twofactor.enable"), logger.UserID(userID))

	u, err := s.deps.Users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if u.TwoFactor.Enabled() {
		return ErrTwoFactorConfirmed
	}

	secret, err := totp.GenerateSecret()
	if err != nil {
		return err
	}
	enc, err := s.deps.Secrets.Encrypt([]byte(secret))
	if err != nil {
		log.Error("encrypt totp secret failed", logger.Err(err))
		return fmt.Errorf("encrypt secret: %w", err)
	}
	// Un Confirm concurrente pudo habilitar el perfil desde GetByID.
	if err := s.deps.Repo.SetPendingSecret(ctx, userID, enc); err != nil {
		if errors.Is(err, repository.ErrStale) {
			return ErrTwoFactorConfirmed
		}
		return fmt.Errorf("store pending secret: %w", err)
	}
	audit.Log(ctx, audit.TwoFactorEnabled, logger.UserID(userID))
	return nil
}

func (s *twoFactorService) Confirm(ctx context.Context, sessionID, userID, code string) error {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("twofactor.confirm"), logger.UserID(userID))

	u, err := s.deps.Users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if !u.TwoFactor.HasSecret() {
		return ErrTwoFactorNotSetUp
	}
	if u.TwoFactor.Enabled() {
		return ErrTwoFactorConfirmed
	}
	secret, err := s.secret(u)
	if err != nil {
		log.Error("stored totp secret unusable", logger.Err(err))
		return err
	}

	now := s.deps.Now()
	step, ok := totp.MatchStep(secret, code, now, s.deps.Config.TOTPSkew, nil)
	if !ok {
		s.deps.Metrics.TwoFactorAttempt(metrics.ResultFailure)
		return ErrInvalidCode
	}

	codes, err := totp.GenerateRecoveryCodes()
	if err != nil {
		return err
	}
	recEnc, err := s.encodeCodes(codes)
	if err != nil {
		return err
	}
	// CAS sobre el ciphertext: si otro Enable rotó el secreto, este código ya no vale.
	if err := s.deps.Repo.Confirm(ctx, userID, u.TwoFactor.SecretEncrypted, recEnc, now.UTC()); err != nil {
		if errors.Is(err, repository.ErrStale) {
			return ErrInvalidCode
		}
		return fmt.Errorf("confirm two factor: %w", err)
	}
	s.deps.Flag.Invalidate(ctx, userID)
	s.deps.Metrics.TwoFactorAttempt(metrics.ResultSuccess)
	// el código de confirmación tampoco sirve para el primer challenge
	if err := s.deps.Repo.ClaimStep(ctx, userID, step); err != nil {
		log.Warn("claim confirm step failed", logger.Err(err))
	}

	if sessionID != "" {
		if _, err := s.deps.Sessions.Update(ctx, sessionID, func(ss *session.Session) error {
			ss.TwoFactorVerified = userID
			return nil
		}); err != nil {
			log.Warn("mark session verified failed", logger.Err(err))
		}
	}
	audit.Log(ctx, audit.TwoFactorConfirmed, logger.UserID(userID))
	return nil
}

func (s *twoFactorService) Disable(ctx context.Context, sessionID, userID, plain string) error {
	if err := s.deps.Confirm.RequireFresh(ctx, sessionID, userID, plain); err != nil {
		return err
	}
	if err := s.deps.Repo.Clear(ctx, userID); err != nil {
		return fmt.Errorf("clear two factor: %w", err)
	}
	s.deps.Flag.Invalidate(ctx, userID)
	audit.Log(ctx, audit.TwoFactorDisabled, logger.UserID(userID))
	return nil
}

func (s *twoFactorService) QRCode(ctx context.Context, userID string) (string, error) {
	u, secret, err := s.loadSecret(ctx, userID)
	if err != nil {
		return "", err
	}
	uri, err := totp.OTPAuthURL(s.deps.Config.Issuer, u.Email, secret)
	if err != nil {
		return "", err
	}
	return totp.QRCodeSVG(uri, s.deps.Config.QRSize)
}

func (s *twoFactorService) SecretKey(ctx context.Context, userID string) (string, error) {
	_, secret, err := s.loadSecret(ctx, userID)
	return secret, err
}

func (s *twoFactorService) RecoveryCodes(ctx context.Context, userID string) ([]string, error) {
	u, err := s.deps.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if len(u.TwoFactor.RecoveryCodesEncrypted) == 0 {
		return nil, ErrTwoFactorNotSetUp
	}
	return s.decodeCodes(u.TwoFactor.RecoveryCodesEncrypted)
}

func (s *twoFactorService) RegenerateRecoveryCodes(ctx context.Context, sessionID, userID, plain string) ([]string, error) {
	if err := s.deps.Confirm.RequireFresh(ctx, sessionID, userID, plain); err != nil {
		return nil, err
	}

	for attempt := 0; attempt < recoverySwapAttempts; attempt++ {
		u, err := s.deps.Users.GetByID(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("load user: %w", err)
		}
		if !u.TwoFactor.Enabled() {
			return nil, ErrTwoFactorNotEnabled
		}
		codes, err := totp.GenerateRecoveryCodes()
		if err != nil {
			return nil, err
		}
		enc, err := s.encodeCodes(codes)
		if err != nil {
			return nil, err
		}
		err = s.deps.Repo.SwapRecoveryCodes(ctx, userID, u.TwoFactor.RecoveryCodesEncrypted, enc)
		if errors.Is(err, repository.ErrStale) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("swap recovery codes: %w", err)
		}
		audit.Log(ctx, audit.TwoFactorRecoveryRegenerated, logger.UserID(userID))
		return codes, nil
	}
	return nil, ErrConcurrentModification
}

func (s *twoFactorService) Status(ctx context.Context, userID string) (*TwoFactorStatus, error) {
	u, err := s.deps.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	st := &TwoFactorStatus{
		Enabled:   u.TwoFactor.HasSecret(),
		Confirmed: u.TwoFactor.Enabled(),
	}
	if len(u.TwoFactor.RecoveryCodesEncrypted) > 0 {
		codes, err := s.decodeCodes(u.TwoFactor.RecoveryCodesEncrypted)
		if err != nil {
			return nil, err
		}
		st.RecoveryCodesRemaining = len(codes)
	}
	return st, nil
}

func (s *twoFactorService) VerifyRecoveryCode(ctx context.Context, userID, code string) (bool, error) {
	if totp.NormalizeRecoveryCode(code) == "" {
		return false, nil
	}
	for attempt := 0; attempt < recoverySwapAttempts; attempt++ {
		u, err := s.deps.Users.GetByID(ctx, userID)
		if err != nil {
			return false, fmt.Errorf("load user: %w", err)
		}
		if !u.TwoFactor.Enabled() || len(u.TwoFactor.RecoveryCodesEncrypted) == 0 {
			return false, nil
		}
		codes, err := s.decodeCodes(u.TwoFactor.RecoveryCodesEncrypted)
		if err != nil {
			return false, err
		}
		i := totp.MatchRecoveryCode(codes, code)
		if i < 0 {
			return false, nil
		}
		enc, err := s.encodeCodes(totp.RemoveRecoveryCode(codes, i))
		if err != nil {
			return false, err
		}
		// Sólo gana quien reemplaza exactamente el set que leyó; el perdedor relee
		// y ya no encuentra el código.
		err = s.deps.Repo.SwapRecoveryCodes(ctx, userID, u.TwoFactor.RecoveryCodesEncrypted, enc)
		if errors.Is(err, repository.ErrStale) {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("swap recovery codes: %w", err)
		}
		audit.Log(ctx, audit.TwoFactorRecoveryUsed, logger.UserID(userID), logger.Count(len(codes)-1))
		return true, nil
	}
	return false, ErrConcurrentModification
}

func (s *twoFactorService) Challenge(ctx context.Context, sessionID, userID string, remember bool) error {
	now := s.deps.Now().UTC()
	_, err := s.deps.Sessions.Update(ctx, sessionID, func(ss *session.Session) error {
		ss.TwoFactorPending = &session.TwoFactorPending{UserID: userID, Remember: remember, IssuedAt: now}
		ss.TwoFactorVerified = ""
		return nil
	})
	if err != nil {
		return fmt.Errorf("store pending challenge: %w", err)
	}
	return nil
}

func (s *twoFactorService) Pending(ctx context.Context, sessionID string) (*session.TwoFactorPending, error) {
	ss, err := s.deps.Sessions.Store().Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, ErrNoPendingChallenge
		}
		return nil, err
	}
	if ss.TwoFactorPending == nil {
		return nil, ErrNoPendingChallenge
	}
	return ss.TwoFactorPending, nil
}

func (s *twoFactorService) Verify(ctx context.Context, sessionID string, in VerifyInput) (*Establishment, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("twofactor.verify"))

	// 1. Tomar el challenge: de dos envíos paralelos sólo uno lo obtiene.
	var pending session.TwoFactorPending
	claimed, err := s.deps.Sessions.Update(ctx, sessionID, func(ss *session.Session) error {
		if ss.TwoFactorPending == nil {
			return ErrNoPendingChallenge
		}
		pending = *ss.TwoFactorPending
		ss.TwoFactorPending = nil
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNoPendingChallenge) || errors.Is(err, session.ErrNotFound) {
			return nil, ErrNoPendingChallenge
		}
		return nil, fmt.Errorf("claim pending challenge: %w", err)
	}
	log = log.With(logger.UserID(pending.UserID))

	u, err := s.deps.Users.GetByID(ctx, pending.UserID)
	if err != nil {
		s.restorePending(ctx, sessionID, pending)
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !u.TwoFactor.Enabled() {
		// 2FA se desactivó mientras el challenge estaba abierto.
		return nil, ErrNoPendingChallenge
	}

	// 2. TOTP primero, recovery code después.
	result := metrics.ResultFailure
	if in.Code != "" {
		secret, err := s.secret(u)
		if err != nil {
			s.restorePending(ctx, sessionID, pending)
			log.Error("stored totp secret unusable", logger.Err(err))
			return nil, err
		}
		if step, ok := totp.MatchStep(secret, in.Code, s.deps.Now(), s.deps.Config.TOTPSkew, u.TwoFactor.LastUsedStep); ok {
			// dos sesiones con el mismo código: sólo una se queda con el step
			switch err := s.deps.Repo.ClaimStep(ctx, u.ID, step); {
			case err == nil:
				result = metrics.ResultSuccess
			case errors.Is(err, repository.ErrStale):
				log.Info("totp step already used")
			default:
				s.restorePending(ctx, sessionID, pending)
				return nil, fmt.Errorf("claim totp step: %w", err)
			}
		}
	}
	if result == metrics.ResultFailure {
		rc := in.RecoveryCode
		if rc == "" {
			rc = in.Code
		}
		ok, err := s.VerifyRecoveryCode(ctx, u.ID, rc)
		if err != nil {
			s.restorePending(ctx, sessionID, pending)
			return nil, err
		}
		if ok {
			result = metrics.ResultRecovery
		}
	}
	s.deps.Metrics.TwoFactorAttempt(result)

	if result == metrics.ResultFailure {
		s.restorePending(ctx, sessionID, pending)
		audit.Log(ctx, audit.TwoFactorChallengeFailed, logger.UserID(u.ID))
		if in.Code == "" {
			return nil, ErrInvalidRecoveryCode
		}
		return nil, ErrInvalidCode
	}

	// 3. Promover la sesión.
	est, err := s.deps.Establisher.establish(ctx, claimed, u, pending.Remember, true)
	if err != nil {
		return nil, err
	}
	est.Redirect = s.deps.Config.HomePath
	audit.Log(ctx, audit.LoginSucceeded, logger.UserID(u.ID), logger.String("second_factor", result))
	return est, nil
}

func (s *twoFactorService) Enabled(ctx context.Context, userID string) (bool, error) {
	return s.deps.Flag.Enabled(ctx, userID)
}

// restorePending devuelve el challenge a la sesión para permitir reintentos.
func (s *twoFactorService) restorePending(ctx context.Context, sessionID string, p session.TwoFactorPending) {
	_, err := s.deps.Sessions.Update(ctx, sessionID, func(ss *session.Session) error {
		if ss.TwoFactorPending == nil {
			ss.TwoFactorPending = &p
		}
		return nil
	})
	if err != nil && !errors.Is(err, session.ErrNotFound) {
		logger.From(ctx).Warn("restore pending challenge failed", logger.Err(err))
	}
}

func (s *twoFactorService) loadSecret(ctx context.Context, userID string) (*repository.User, string, error) {
	u, err := s.deps.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, "", fmt.Errorf("load user: %w", err)
	}
	if !u.TwoFactor.HasSecret() {
		return nil, "", ErrTwoFactorNotSetUp
	}
	secret, err := s.secret(u)
	if err != nil {
		return nil, "", err
	}
	return u, secret, nil
}

func (s *twoFactorService) secret(u *repository.User) (string, error) {
	raw, err := s.deps.Secrets.Decrypt(u.TwoFactor.SecretEncrypted)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSecretUnusable, err)
	}
	return string(raw), nil
}

func (s *twoFactorService) encodeCodes(codes []string) ([]byte, error) {
	b, err := json.Marshal(codes)
	if err != nil {
		return nil, err
	}
	enc, err := s.deps.Secrets.Encrypt(b)
	if err != nil {
		return nil, fmt.Errorf("encrypt recovery codes: %w", err)
	}
	return enc, nil
}

func (s *twoFactorService) decodeCodes(enc []byte) ([]string, error) {
	raw, err := s.deps.Secrets.Decrypt(enc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSecretUnusable, err)
	}
	var codes []string
	if err := json.Unmarshal(raw, &codes); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSecretUnusable, err)
	}
	return codes, nil
}
