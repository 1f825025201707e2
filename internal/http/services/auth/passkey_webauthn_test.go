package auth

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"testing"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/protocol/webauthncbor"
	"github.com/go-webauthn/webauthn/protocol/webauthncose"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dropDatabas3/accountd/internal/audit"
	"github.com/dropDatabas3/accountd/internal/observability/logger"
)

const (
	testRPID   = "localhost"
	testOrigin = "http://localhost"
)

// softAuthenticator es un autenticador P-256 en memoria con attestation "none".
type softAuthenticator struct {
	t      *testing.T
	key    *ecdsa.PrivateKey
	credID []byte
}

func newSoftAuthenticator(t *testing.T) *softAuthenticator {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	id := make([]byte, 16)
	_, err = rand.Read(id)
	require.NoError(t, err)
	return &softAuthenticator{t: t, key: key, credID: id}
}

func (a *softAuthenticator) cosePublicKey() []byte {
	x := make([]byte, 32)
	y := make([]byte, 32)
	a.key.PublicKey.X.FillBytes(x)
	a.key.PublicKey.Y.FillBytes(y)
	raw, err := webauthncbor.Marshal(webauthncose.EC2PublicKeyData{
		PublicKeyData: webauthncose.PublicKeyData{
			KeyType:   int64(webauthncose.EllipticKey),
			Algorithm: int64(webauthncose.AlgES256),
		},
		Curve:  int64(webauthncose.P256),
		XCoord: x,
		YCoord: y,
	})
	require.NoError(a.t, err)
	return raw
}

func authData(flags protocol.AuthenticatorFlags, counter uint32) []byte {
	rp := sha256.Sum256([]byte(testRPID))
	out := append([]byte{}, rp[:]...)
	out = append(out, byte(flags))
	return binary.BigEndian.AppendUint32(out, counter)
}

func clientData(t *testing.T, typ, challenge, origin string) []byte {
	t.Helper()
	raw, err := json.Marshal(map[string]string{"type": typ, "challenge": challenge, "origin": origin})
	require.NoError(t, err)
	return raw
}

func (a *softAuthenticator) attest(challenge, origin string) *protocol.ParsedCredentialCreationData {
	a.t.Helper()
	data := authData(protocol.FlagUserPresent|protocol.FlagUserVerified|protocol.FlagAttestedCredentialData, 1)
	data = append(data, make([]byte, 16)...) // aaguid
	data = binary.BigEndian.AppendUint16(data, uint16(len(a.credID)))
	data = append(data, a.credID...)
	data = append(data, a.cosePublicKey()...)

	obj, err := webauthncbor.Marshal(map[string]any{
		"fmt":      "none",
		"attStmt":  map[string]any{},
		"authData": data,
	})
	require.NoError(a.t, err)

	ccr := protocol.CredentialCreationResponse{
		PublicKeyCredential: protocol.PublicKeyCredential{
			Credential: protocol.Credential{ID: base64.RawURLEncoding.EncodeToString(a.credID), Type: "public-key"},
			RawID:      a.credID,
		},
		AttestationResponse: protocol.AuthenticatorAttestationResponse{
			AuthenticatorResponse: protocol.AuthenticatorResponse{
				ClientDataJSON: clientData(a.t, "webauthn.create", challenge, origin),
			},
			AttestationObject: obj,
		},
	}
	parsed, err := ccr.Parse()
	require.NoError(a.t, err)
	return parsed
}

func (a *softAuthenticator) assertWith(challenge, origin string, counter uint32, userHandle []byte, tamper func(sig []byte)) *protocol.ParsedCredentialAssertionData {
	a.t.Helper()
	data := authData(protocol.FlagUserPresent|protocol.FlagUserVerified, counter)
	cd := clientData(a.t, "webauthn.get", challenge, origin)
	cdHash := sha256.Sum256(cd)
	digest := sha256.Sum256(append(append([]byte{}, data...), cdHash[:]...))
	sig, err := ecdsa.SignASN1(rand.Reader, a.key, digest[:])
	require.NoError(a.t, err)
	if tamper != nil {
		tamper(sig)
	}

	car := protocol.CredentialAssertionResponse{
		PublicKeyCredential: protocol.PublicKeyCredential{
			Credential: protocol.Credential{ID: base64.RawURLEncoding.EncodeToString(a.credID), Type: "public-key"},
			RawID:      a.credID,
		},
		AssertionResponse: protocol.AuthenticatorAssertionResponse{
			AuthenticatorResponse: protocol.AuthenticatorResponse{ClientDataJSON: cd},
			AuthenticatorData:     data,
			Signature:             sig,
			UserHandle:            userHandle,
		},
	}
	parsed, err := car.Parse()
	require.NoError(a.t, err)
	return parsed
}

func (a *softAuthenticator) sign(challenge string, counter uint32, userHandle []byte) *protocol.ParsedCredentialAssertionData {
	return a.assertWith(challenge, testOrigin, counter, userHandle, nil)
}

func newWebAuthnEnv(t *testing.T) *testEnv {
	t.Helper()
	wa, err := webauthn.New(&webauthn.Config{
		RPID:          testRPID,
		RPDisplayName: "accountd",
		RPOrigins:     []string{testOrigin},
	})
	require.NoError(t, err)
	return newTestEnvWith(t, wa)
}

func registerSoftPasskey(t *testing.T, e *testEnv, a *softAuthenticator) {
	t.Helper()
	ctx := context.Background()
	s := e.startSession(t)
	opts, err := e.svc.Passkeys.RegistrationOptions(ctx, s.ID, e.user.ID)
	require.NoError(t, err)
	_, err = e.svc.Passkeys.Register(ctx, s.ID, e.user.ID, "Laptop", a.attest(base64.RawURLEncoding.EncodeToString(opts.Challenge), testOrigin))
	require.NoError(t, err)
}

// beginLogin abre una ceremonia discoverable y devuelve la sesión y su challenge.
func beginLogin(t *testing.T, e *testEnv) (string, string) {
	t.Helper()
	s := e.startSession(t)
	opts, err := e.svc.Passkeys.AuthenticationOptions(context.Background(), s.ID, "")
	require.NoError(t, err)
	return s.ID, base64.RawURLEncoding.EncodeToString(opts.Challenge)
}

func TestPasskeyWebAuthn_RegisterThenAuthenticate(t *testing.T) {
	e := newWebAuthnEnv(t)
	ctx := context.Background()
	a := newSoftAuthenticator(t)
	registerSoftPasskey(t, e, a)

	list, err := e.svc.Passkeys.List(ctx, e.user.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, a.credID, list[0].CredentialID)
	assert.Equal(t, uint32(1), list[0].SignCount)

	sid, challenge := beginLogin(t, e)
	est, err := e.svc.Passkeys.Authenticate(ctx, e.loadSession(t, sid), a.sign(challenge, 2, []byte(e.user.ID)))
	require.NoError(t, err)
	assert.Equal(t, e.user.ID, est.UserID)

	list, err = e.svc.Passkeys.List(ctx, e.user.ID)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), list[0].SignCount)
}

func TestPasskeyWebAuthn_ScopedLogin(t *testing.T) {
	e := newWebAuthnEnv(t)
	ctx := context.Background()
	a := newSoftAuthenticator(t)
	registerSoftPasskey(t, e, a)

	s := e.startSession(t)
	opts, err := e.svc.Passkeys.AuthenticationOptions(ctx, s.ID, e.user.Email)
	require.NoError(t, err)
	require.Len(t, opts.AllowedCredentials, 1)

	est, err := e.svc.Passkeys.Authenticate(ctx, e.loadSession(t, s.ID),
		a.sign(base64.RawURLEncoding.EncodeToString(opts.Challenge), 2, nil))
	require.NoError(t, err)
	assert.Equal(t, e.user.ID, est.UserID)
}

func TestPasskeyWebAuthn_BadSignatureConsumesChallenge(t *testing.T) {
	e := newWebAuthnEnv(t)
	ctx := context.Background()
	a := newSoftAuthenticator(t)
	registerSoftPasskey(t, e, a)

	sid, challenge := beginLogin(t, e)
	flipped := a.assertWith(challenge, testOrigin, 2, []byte(e.user.ID), func(sig []byte) {
		sig[len(sig)-1] ^= 0x01
	})
	_, err := e.svc.Passkeys.Authenticate(ctx, e.loadSession(t, sid), flipped)
	assert.ErrorIs(t, err, ErrInvalidAssertion)

	// la misma sesión ya no tiene challenge, ni con una firma buena
	_, err = e.svc.Passkeys.Authenticate(ctx, e.loadSession(t, sid), a.sign(challenge, 2, []byte(e.user.ID)))
	assert.ErrorIs(t, err, ErrChallengeMismatch)

	list, err := e.svc.Passkeys.List(ctx, e.user.ID)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), list[0].SignCount)
}

func TestPasskeyWebAuthn_WrongOriginRejected(t *testing.T) {
	e := newWebAuthnEnv(t)
	ctx := context.Background()
	a := newSoftAuthenticator(t)
	registerSoftPasskey(t, e, a)

	sid, challenge := beginLogin(t, e)
	_, err := e.svc.Passkeys.Authenticate(ctx, e.loadSession(t, sid),
		a.assertWith(challenge, "http://evil.example", 2, []byte(e.user.ID), nil))
	assert.ErrorIs(t, err, ErrInvalidAssertion)
}

func TestPasskeyWebAuthn_WrongOriginAtRegistration(t *testing.T) {
	e := newWebAuthnEnv(t)
	ctx := context.Background()
	a := newSoftAuthenticator(t)
	s := e.startSession(t)
	opts, err := e.svc.Passkeys.RegistrationOptions(ctx, s.ID, e.user.ID)
	require.NoError(t, err)

	parsed := a.attest(base64.RawURLEncoding.EncodeToString(opts.Challenge), "http://evil.example")
	_, err = e.svc.Passkeys.Register(ctx, s.ID, e.user.ID, "Laptop", parsed)
	assert.ErrorIs(t, err, ErrInvalidAttestation)

	n, err := e.store.Passkeys().CountByUser(ctx, e.user.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPasskeyWebAuthn_ReplayedCounterIsClone(t *testing.T) {
	e := newWebAuthnEnv(t)
	a := newSoftAuthenticator(t)
	registerSoftPasskey(t, e, a)

	sid, challenge := beginLogin(t, e)
	_, err := e.svc.Passkeys.Authenticate(context.Background(), e.loadSession(t, sid), a.sign(challenge, 2, []byte(e.user.ID)))
	require.NoError(t, err)

	core, logs := observer.New(zapcore.WarnLevel)
	ctx := logger.ToContext(context.Background(), zap.New(core))

	// firma válida, pero el contador no avanzó
	sid, challenge = beginLogin(t, e)
	_, err = e.svc.Passkeys.Authenticate(ctx, e.loadSession(t, sid), a.sign(challenge, 2, []byte(e.user.ID)))
	assert.ErrorIs(t, err, ErrPossibleCloneDetected)

	list, err := e.svc.Passkeys.List(ctx, e.user.ID)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), list[0].SignCount)

	clone := logs.FilterField(logger.Event(audit.PasskeyCloneDetected)).All()
	assert.Len(t, clone, 1)
}
