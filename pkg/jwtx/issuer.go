package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinKeyLength is the shortest HS256 secret accepted, in bytes.
const MinKeyLength = 32

// IssuerConfig configures an Issuer.
type IssuerConfig struct {
	// Key is the HMAC secret. It is copied and never changes afterwards.
	Key []byte

	Issuer    string
	Audience  string
	AccessTTL time.Duration

	// Leeway allows small clock skew when validating exp and iat.
	Leeway time.Duration

	// Now overrides the clock, mostly for tests.
	Now func() time.Time
}

// Issuer signs and verifies HS256 tokens with a single immutable secret.
type Issuer struct {
	key       []byte
	issuer    string
	audience  string
	accessTTL time.Duration
	leeway    time.Duration
	now       func() time.Time
}

var _ TypedVerifier = (*Issuer)(nil)

// NewIssuer validates the key and returns a ready Issuer.
func NewIssuer(cfg IssuerConfig) (*Issuer, error) {
	if len(cfg.Key) < MinKeyLength {
		return nil, fmt.Errorf("%w: need %d bytes, got %d", ErrWeakKey, MinKeyLength, len(cfg.Key))
	}
	if cfg.Issuer == "" || cfg.Audience == "" {
		return nil, errors.New("jwtx: issuer and audience are required")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTokenTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	key := make([]byte, len(cfg.Key))
	copy(key, cfg.Key)

	return &Issuer{
		key:       key,
		issuer:    cfg.Issuer,
		audience:  cfg.Audience,
		accessTTL: cfg.AccessTTL,
		leeway:    cfg.Leeway,
		now:       cfg.Now,
	}, nil
}

// AccessTTL reports the configured access token lifetime.
func (i *Issuer) AccessTTL() time.Duration { return i.accessTTL }

// IssueAccessToken signs a short-lived ACCESS token for subject.
func (i *Issuer) IssueAccessToken(subject string, authorities []string) (string, time.Time, error) {
	if subject == "" {
		return "", time.Time{}, ErrInvalidClaim
	}
	claims := newClaims(subject, TokenTypeAccess, authorities, i.issuer, i.audience, i.now(), i.accessTTL)
	return i.sign(claims)
}

// IssueChallengeToken signs a single-purpose token (MFA challenge, enrollment,
// email verification, password reset). Challenge tokens never carry
// authorities.
func (i *Issuer) IssueChallengeToken(subject string, purpose TokenType, ttl time.Duration, data ChallengeData) (string, time.Time, error) {
	if subject == "" || ttl <= 0 {
		return "", time.Time{}, ErrInvalidClaim
	}
	switch purpose {
	case TokenTypeMFARequired, TokenTypeMFAEnrollment, TokenTypeEmailVerification, TokenTypePasswordReset:
	default:
		return "", time.Time{}, fmt.Errorf("%w: %q is not a challenge type", ErrInvalidClaim, purpose)
	}

	claims := newClaims(subject, purpose, nil, i.issuer, i.audience, i.now(), ttl)
	claims.MFASecret = data.MFASecret
	claims.PasswordFingerprint = data.PasswordFingerprint
	claims.LoginFingerprint = data.LoginFingerprint
	return i.sign(claims)
}

func (i *Issuer) sign(claims Claims) (string, time.Time, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("jwtx: sign: %w", err)
	}
	return signed, claims.ExpiresAt.Time, nil
}

// Verify checks signature, algorithm, issuer, audience, iat and exp and
// returns the claims. Any token type is accepted.
func (i *Issuer) Verify(token string) (Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithAudience(i.audience),
		jwt.WithTimeFunc(i.now),
		jwt.WithLeeway(i.leeway),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)

	var claims Claims
	_, err := parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return i.key, nil
	})
	if err != nil {
		return Claims{}, mapParseError(err)
	}
	return claims, nil
}

// VerifyType is Verify plus a tokenType check.
func (i *Issuer) VerifyType(token string, want TokenType) (Claims, error) {
	claims, err := i.Verify(token)
	if err != nil {
		return Claims{}, err
	}
	if claims.TokenType != want {
		return Claims{}, ErrWrongType
	}
	return claims, nil
}

func mapParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrInvalidSig
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenUsedBeforeIssued), errors.Is(err, jwt.ErrTokenNotValidYet):
		return ErrNotYetValid
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return ErrIssuer
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return ErrAudience
	case errors.Is(err, ErrInvalidClaim),
		errors.Is(err, jwt.ErrTokenRequiredClaimMissing),
		errors.Is(err, jwt.ErrTokenInvalidClaims):
		return ErrInvalidClaim
	default:
		return ErrMalformed
	}
}
