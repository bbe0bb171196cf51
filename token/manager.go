package token

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-session/authapi"
	autherrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/users"
	"github.com/pkg/errors"
)

// Claims is the verified content of an access token.
type Claims struct {
	UserID    string
	Email     string
	JTI       string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type Manager struct {
	signer            Signer            // Token signing and verification
	issuer            string            // "iss" claim
	revokedCache      RevokedTokenCache // Cache for revoked tokens
	accessTokenExpiry time.Duration
	nowFunc           func() time.Time
}

type ManagerOption func(*Manager)

func WithTokenExpiry(accessTokenExpiry time.Duration) ManagerOption {
	return func(m *Manager) {
		m.accessTokenExpiry = accessTokenExpiry
	}
}

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

func WithIssuer(issuer string) ManagerOption {
	return func(m *Manager) {
		m.issuer = issuer
	}
}

func WithRevokedTokenCache(cache RevokedTokenCache) ManagerOption {
	return func(m *Manager) {
		m.revokedCache = cache
	}
}

func New(signer Signer, options ...ManagerOption) *Manager {
	m := &Manager{
		signer:       signer,
		revokedCache: NewInMemoryRevokedTokenCache(), // Default implementation
	}

	for _, opt := range options {
		opt(m)
	}

	if m.accessTokenExpiry <= 0 {
		m.accessTokenExpiry = time.Hour
	}
	if m.nowFunc == nil {
		m.nowFunc = time.Now
	}
	return m
}

// CreateAccessToken issues a bearer token for the user
func (c *Manager) CreateAccessToken(user *users.User) (*authapi.LoginToken, error) {
	if user == nil {
		return nil, errors.New("Manager.CreateAccessToken: user is nil")
	}
	now := c.nowFunc()

	claims := jwt.MapClaims{
		"iss":   c.issuer,                                  // The issuer of the token
		"sub":   user.ID,                                   // The subject, the user's unique ID
		"email": user.Email,                                // Saves a lookup for display-only consumers
		"iat":   int64(now.Unix()),                         // Issued At: the time at which the token was issued
		"exp":   int64(now.Add(c.accessTokenExpiry).Unix()), // Expiry: when the token will expire
		"jti":   uuid.New().String(),                       // Unique token ID for revocation
	}

	signed, err := c.signer.Sign(claims)
	if err != nil {
		return nil, errors.Wrap(err, "Manager.CreateAccessToken Sign")
	}

	return &authapi.LoginToken{
		GrantType:      authapi.GrantTypeBearer,
		AccessToken:    signed,
		TokenExpiresIn: c.accessTokenExpiry.Milliseconds(),
	}, nil
}

// Introspect verifies the token and returns its claims. Expired and revoked tokens
// yield ErrTokenExpired and ErrTokenRevoked, anything else unusable ErrInvalidToken.
func (c *Manager) Introspect(rawToken string) (*Claims, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, autherrors.ErrInvalidToken
	}

	token, err := c.parse(rawToken)
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, autherrors.ErrTokenExpired
	}
	if err != nil || !token.Valid {
		return nil, autherrors.Wrapf(autherrors.ErrInvalidToken, "Manager.Introspect %v", err)
	}

	claims, err := claimsFromToken(token)
	if err != nil {
		return nil, err
	}

	revoked, err := c.revokedCache.IsRevoked(claims.JTI)
	if err != nil {
		return nil, autherrors.Wrapf(autherrors.ErrInternal, "Manager.Introspect revocation lookup %v", err)
	}
	if revoked {
		return nil, autherrors.ErrTokenRevoked
	}
	return claims, nil
}

// RevokeAccessToken revokes an access token by its JTI. Revoking an already expired token is a no-op.
func (c *Manager) RevokeAccessToken(rawToken string) error {
	token, err := c.parse(rawToken)
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil
	}
	if err != nil || !token.Valid {
		return autherrors.Wrapf(autherrors.ErrInvalidToken, "Manager.RevokeAccessToken %v", err)
	}

	claims, err := claimsFromToken(token)
	if err != nil {
		return err
	}
	return c.revokedCache.Add(claims.JTI, claims.ExpiresAt)
}

// CleanupRevokedTokens removes expired tokens from the revocation cache
func (c *Manager) CleanupRevokedTokens() {
	if c.revokedCache != nil {
		c.revokedCache.Cleanup(c.nowFunc())
	}
}

func (c *Manager) parse(rawToken string) (*jwt.Token, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{c.signer.GetSigningMethod().Alg()}),
		jwt.WithTimeFunc(c.nowFunc),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)
	return parser.Parse(rawToken, c.signer.GetVerificationKey)
}

func claimsFromToken(token *jwt.Token) (*Claims, error) {
	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.Wrap(autherrors.ErrInvalidToken, "error extracting claims from token")
	}

	sub, _ := mapClaims["sub"].(string)
	email, _ := mapClaims["email"].(string)
	jti, _ := mapClaims["jti"].(string)
	if sub == "" || jti == "" {
		return nil, errors.Wrap(autherrors.ErrInvalidToken, "token missing sub or jti claim")
	}

	exp, err := mapClaims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, errors.Wrap(autherrors.ErrInvalidToken, "token missing exp claim")
	}
	claims := &Claims{
		UserID:    sub,
		Email:     email,
		JTI:       jti,
		ExpiresAt: exp.Time,
	}
	if iat, err := mapClaims.GetIssuedAt(); err == nil && iat != nil {
		claims.IssuedAt = iat.Time
	}
	return claims, nil
}
