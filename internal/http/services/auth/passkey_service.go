package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"go.uber.org/zap"

	"github.com/dropDatabas3/accountd/internal/audit"
	"github.com/dropDatabas3/accountd/internal/domain/repository"
	"github.com/dropDatabas3/accountd/internal/metrics"
	"github.com/dropDatabas3/accountd/internal/observability/logger"
	tokens "github.com/dropDatabas3/accountd/internal/security/token"
	"github.com/dropDatabas3/accountd/internal/session"
)

// PasskeyService implementa las ceremonias WebAuthn y la gestión de passkeys.
type PasskeyService interface {
	List(ctx context.Context, userID string) ([]repository.PasskeyCredential, error)
	RegistrationOptions(ctx context.Context, sessionID, userID string) (*protocol.PublicKeyCredentialCreationOptions, error)
	Register(ctx context.Context, sessionID, userID, name string, parsed *protocol.ParsedCredentialCreationData) (*repository.PasskeyCredential, error)
	Rename(ctx context.Context, userID, id, name string) error
	Delete(ctx context.Context, userID, id string) error
	// AuthenticationOptions acota allowCredentials al usuario de email si tiene passkeys.
	AuthenticationOptions(ctx context.Context, sessionID, email string) (*protocol.PublicKeyCredentialRequestOptions, error)
	Authenticate(ctx context.Context, current *session.Session, parsed *protocol.ParsedCredentialAssertionData) (*Establishment, error)
	CheckUser(ctx context.Context, email string) (*PasskeyPresence, error)
}

type PasskeyPresence struct {
	HasPasskeys bool
	Count       int
}

type PasskeyDeps struct {
	Users       repository.UserRepository
	Repo        repository.PasskeyRepository
	Engine      WebAuthnEngine
	Sessions    *session.Manager
	Establisher *establisher
	Metrics     *metrics.Metrics
	Config      Config
	Now         func() time.Time
}

type passkeyService struct {
	deps PasskeyDeps
}

var errNoCeremony = errors.New("no ceremony in session")

func NewPasskeyService(deps PasskeyDeps) PasskeyService {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	deps.Config.applyDefaults()
	return &passkeyService{deps: deps}
}

func (s *passkeyService) List(ctx context.Context, userID string) ([]repository.PasskeyCredential, error) {
	return s.deps.Repo.ListByUser(ctx, userID)
}

func (s *passkeyService) RegistrationOptions(ctx context.Context, sessionID, userID string) (*protocol.PublicKeyCredentialCreationOptions, error) {
	wu, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	creation, sd, err := s.deps.Engine.BeginRegistration(wu,
		webauthn.WithExclusions(wu.descriptors()),
		webauthn.WithResidentKeyRequirement(protocol.ResidentKeyRequirementPreferred),
	)
	if err != nil {
		return nil, fmt.Errorf("begin registration: %w", err)
	}
	if err := s.storeCeremony(ctx, sessionID, session.CeremonyRegistration, userID, sd); err != nil {
		return nil, err
	}
	return &creation.Response, nil
}

func (s *passkeyService) Register(ctx context.Context, sessionID, userID, name string, parsed *protocol.ParsedCredentialCreationData) (*repository.PasskeyCredential, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("passkey.register"), logger.UserID(userID))

	cred, err := s.register(ctx, sessionID, userID, name, parsed)
	if err != nil {
		s.deps.Metrics.PasskeyCeremony(session.CeremonyRegistration, ceremonyResult(err))
		audit.Log(ctx, audit.PasskeyRegisterFailed, logger.UserID(userID), logger.Err(err))
		log.Debug("passkey registration rejected", logger.Err(err))
		return nil, err
	}
	s.deps.Metrics.PasskeyCeremony(session.CeremonyRegistration, metrics.ResultSuccess)
	audit.Log(ctx, audit.PasskeyRegistered, logger.UserID(userID), logger.CredentialID(cred.CredentialID))
	return cred, nil
}

func (s *passkeyService) register(ctx context.Context, sessionID, userID, name string, parsed *protocol.ParsedCredentialCreationData) (*repository.PasskeyCredential, error) {
	// El challenge se consume siempre, salga bien o mal la verificación.
	sd, err := s.takeCeremony(ctx, sessionID, session.CeremonyRegistration, userID)
	if err != nil {
		return nil, err
	}
	if parsed == nil {
		return nil, ErrInvalidAttestation
	}
	if !tokens.Equal(sd.Challenge, parsed.Response.CollectedClientData.Challenge) {
		return nil, ErrChallengeMismatch
	}

	wu, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	cred, err := s.deps.Engine.CreateCredential(wu, *sd, parsed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAttestation, err)
	}

	stored, err := s.deps.Repo.Create(ctx, repository.CreatePasskeyInput{
		UserID:          userID,
		Name:            strings.TrimSpace(name),
		CredentialID:    cred.ID,
		PublicKey:       cred.PublicKey,
		AttestationType: cred.AttestationType,
		AAGUID:          cred.Authenticator.AAGUID,
		SignCount:       cred.Authenticator.SignCount,
		Transports:      transportStrings(cred.Transport),
		BackupEligible:  cred.Flags.BackupEligible,
		BackupState:     cred.Flags.BackupState,
	})
	if err != nil {
		if repository.IsConflict(err) {
			return nil, ErrDuplicateCredential
		}
		return nil, fmt.Errorf("store passkey: %w", err)
	}
	return stored, nil
}

func (s *passkeyService) Rename(ctx context.Context, userID, id, name string) error {
	if err := s.deps.Repo.Rename(ctx, userID, id, strings.TrimSpace(name)); err != nil {
		if repository.IsNotFound(err) {
			return ErrPasskeyNotFound
		}
		return err
	}
	audit.Log(ctx, audit.PasskeyRenamed, logger.UserID(userID), logger.ID(id))
	return nil
}

func (s *passkeyService) Delete(ctx context.Context, userID, id string) error {
	if err := s.deps.Repo.Delete(ctx, userID, id); err != nil {
		if repository.IsNotFound(err) {
			return ErrPasskeyNotFound
		}
		return err
	}
	audit.Log(ctx, audit.PasskeyDeleted, logger.UserID(userID), logger.ID(id))
	return nil
}

func (s *passkeyService) AuthenticationOptions(ctx context.Context, sessionID, email string) (*protocol.PublicKeyCredentialRequestOptions, error) {
	var scoped *webauthnUser
	if email = strings.ToLower(strings.TrimSpace(email)); email != "" {
		u, err := s.deps.Users.GetByEmail(ctx, email)
		switch {
		case err == nil:
			creds, err := s.deps.Repo.ListByUser(ctx, u.ID)
			if err != nil {
				return nil, fmt.Errorf("list passkeys: %w", err)
			}
			if len(creds) > 0 {
				scoped = &webauthnUser{user: u, creds: creds}
			}
		case repository.IsNotFound(err):
			// email desconocido: mismo flujo que sin hint
		default:
			return nil, fmt.Errorf("load user: %w", err)
		}
	}

	var (
		assertion *protocol.CredentialAssertion
		sd        *webauthn.SessionData
		err       error
		userID    string
	)
	uv := webauthn.WithUserVerification(protocol.VerificationPreferred)
	if scoped != nil {
		userID = scoped.user.ID
		assertion, sd, err = s.deps.Engine.BeginLogin(scoped, uv)
	} else {
		assertion, sd, err = s.deps.Engine.BeginDiscoverableLogin(uv)
	}
	if err != nil {
		return nil, fmt.Errorf("begin login: %w", err)
	}
	if err := s.storeCeremony(ctx, sessionID, session.CeremonyAuthentication, userID, sd); err != nil {
		return nil, err
	}
	return &assertion.Response, nil
}

func (s *passkeyService) Authenticate(ctx context.Context, current *session.Session, parsed *protocol.ParsedCredentialAssertionData) (*Establishment, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("passkey.authenticate"))

	est, err := s.authenticate(ctx, current, parsed)
	if err != nil {
		res := ceremonyResult(err)
		s.deps.Metrics.PasskeyCeremony(session.CeremonyAuthentication, res)
		if res == metrics.ResultClone {
			audit.Log(ctx, audit.PasskeyCloneDetected, credentialField(parsed))
		} else {
			audit.Log(ctx, audit.PasskeyAssertionFailed, credentialField(parsed), logger.Err(err))
		}
		log.Debug("passkey authentication rejected", logger.Err(err))
		return nil, err
	}
	s.deps.Metrics.PasskeyCeremony(session.CeremonyAuthentication, metrics.ResultSuccess)
	audit.Log(ctx, audit.PasskeyAuthenticated, logger.UserID(est.UserID), credentialField(parsed))
	return est, nil
}

func (s *passkeyService) authenticate(ctx context.Context, current *session.Session, parsed *protocol.ParsedCredentialAssertionData) (*Establishment, error) {
	if current == nil {
		return nil, ErrChallengeMismatch
	}
	sd, err := s.takeCeremony(ctx, current.ID, session.CeremonyAuthentication, "")
	if err != nil {
		return nil, err
	}
	if parsed == nil {
		return nil, ErrInvalidAssertion
	}
	if !tokens.Equal(sd.Challenge, parsed.Response.CollectedClientData.Challenge) {
		return nil, ErrChallengeMismatch
	}

	stored, err := s.deps.Repo.GetByCredentialID(ctx, parsed.RawID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrUnknownCredential
		}
		return nil, fmt.Errorf("load passkey: %w", err)
	}
	wu, err := s.loadUser(ctx, stored.UserID)
	if err != nil {
		return nil, err
	}

	if len(sd.UserID) > 0 {
		if !bytes.Equal(sd.UserID, wu.WebAuthnID()) {
			return nil, ErrInvalidAssertion
		}
		_, err = s.deps.Engine.ValidateLogin(wu, *sd, parsed)
	} else {
		_, err = s.deps.Engine.ValidateDiscoverableLogin(func(rawID, userHandle []byte) (webauthn.User, error) {
			if !bytes.Equal(userHandle, wu.WebAuthnID()) {
				return nil, ErrInvalidAssertion
			}
			return wu, nil
		}, *sd, parsed)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAssertion, err)
	}

	// Anti replay: el contador debe crecer, salvo autenticadores sin contador (0 y 0).
	counter := parsed.Response.AuthenticatorData.Counter
	if counter <= stored.SignCount && !(counter == 0 && stored.SignCount == 0) {
		return nil, ErrPossibleCloneDetected
	}
	if err := s.deps.Repo.UpdateSignCount(ctx, stored.CredentialID, stored.SignCount, counter, s.deps.Now().UTC()); err != nil {
		if repository.IsStale(err) {
			// otra aserción avanzó el contador primero
			return nil, ErrPossibleCloneDetected
		}
		return nil, fmt.Errorf("update sign count: %w", err)
	}

	// Con user verification la passkey cubre los dos factores.
	uv := parsed.Response.AuthenticatorData.Flags.UserVerified()
	est, err := s.deps.Establisher.establish(ctx, current, wu.user, false, uv)
	if err != nil {
		return nil, err
	}
	est.Redirect = s.deps.Config.HomePath
	return est, nil
}

func (s *passkeyService) CheckUser(ctx context.Context, email string) (*PasskeyPresence, error) {
	u, err := s.deps.Users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if repository.IsNotFound(err) {
			return &PasskeyPresence{}, nil
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	n, err := s.deps.Repo.CountByUser(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("count passkeys: %w", err)
	}
	return &PasskeyPresence{HasPasskeys: n > 0, Count: n}, nil
}

func (s *passkeyService) loadUser(ctx context.Context, userID string) (*webauthnUser, error) {
	u, err := s.deps.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	creds, err := s.deps.Repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list passkeys: %w", err)
	}
	return &webauthnUser{user: u, creds: creds}, nil
}

func (s *passkeyService) storeCeremony(ctx context.Context, sessionID, kind, userID string, sd *webauthn.SessionData) error {
	raw, err := json.Marshal(sd)
	if err != nil {
		return err
	}
	c := &session.Ceremony{
		Kind:      kind,
		UserID:    userID,
		Data:      raw,
		ExpiresAt: s.deps.Now().UTC().Add(s.deps.Config.CeremonyTimeout),
	}
	if _, err := s.deps.Sessions.Update(ctx, sessionID, func(ss *session.Session) error {
		ss.Ceremony = c
		return nil
	}); err != nil {
		return fmt.Errorf("store ceremony: %w", err)
	}
	return nil
}

// takeCeremony saca la ceremonia de la sesión en el mismo update que la lee,
// así dos envíos paralelos no pueden usar el mismo challenge.
// userID vacío acepta ceremonias sin usuario.
func (s *passkeyService) takeCeremony(ctx context.Context, sessionID, kind, userID string) (*webauthn.SessionData, error) {
	var c *session.Ceremony
	_, err := s.deps.Sessions.Update(ctx, sessionID, func(ss *session.Session) error {
		if ss.Ceremony == nil {
			return errNoCeremony
		}
		c = ss.Ceremony
		ss.Ceremony = nil
		return nil
	})
	if err != nil {
		if errors.Is(err, errNoCeremony) || errors.Is(err, session.ErrNotFound) {
			return nil, ErrChallengeMismatch
		}
		return nil, fmt.Errorf("take ceremony: %w", err)
	}

	if c.Kind != kind || (userID != "" && c.UserID != userID) {
		return nil, ErrChallengeMismatch
	}
	if c.Expired(s.deps.Now()) {
		return nil, ErrChallengeExpired
	}
	var sd webauthn.SessionData
	if err := json.Unmarshal(c.Data, &sd); err != nil {
		return nil, ErrChallengeMismatch
	}
	return &sd, nil
}

func ceremonyResult(err error) string {
	switch {
	case errors.Is(err, ErrPossibleCloneDetected):
		return metrics.ResultClone
	case errors.Is(err, ErrChallengeExpired):
		return metrics.ResultExpired
	default:
		return metrics.ResultFailure
	}
}

func credentialField(parsed *protocol.ParsedCredentialAssertionData) zap.Field {
	if parsed == nil {
		return logger.String("credential_id", "")
	}
	return logger.CredentialID(parsed.RawID)
}
