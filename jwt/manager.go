package jwt

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Type discriminates access tokens from refresh tokens.
type Type string

const (
	TypeAccess  Type = "access"
	TypeRefresh Type = "refresh"
)

const (
	// MinSecretBytes is the HS256 key length used without derivation.
	MinSecretBytes = 32
	// MinProductionSecretBytes is the shortest raw secret accepted in production mode.
	MinProductionSecretBytes = 16
	// DefaultLeeway is the clock skew tolerated on iat. Expiry is strict.
	DefaultLeeway = 30 * time.Second
)

var (
	// ErrExpired is returned for tokens whose exp has passed.
	ErrExpired = errors.New("token expired")
	// ErrInvalid is returned for malformed, forged or mistyped tokens.
	ErrInvalid = errors.New("token invalid")
)

// Config controls signing and verification.
type Config struct {
	Secret         []byte
	Issuer         string
	Audience       string
	AccessTTL      time.Duration
	RefreshTTL     time.Duration
	Leeway         time.Duration
	KeyID          string
	ProductionMode bool
	// Now overrides the clock. Tests only.
	Now func() time.Time
}

// Claims is the signed payload. Role and Permissions are a snapshot taken
// at issuance; consumers re-resolve both from the user store.
type Claims struct {
	Role        string   `json:"role"`
	Permissions []string `json:"perms,omitempty"`
	SessionID   string   `json:"sid"`
	Type        Type     `json:"typ"`
	jwt.RegisteredClaims
}

// Manager signs and verifies HS256 tokens.
type Manager struct {
	config Config
	key    []byte
}

// NewManager validates cfg and derives the signing key. Secrets shorter
// than MinSecretBytes are stretched through SHA-256 rather than used raw.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("token secret required")
	}
	if cfg.ProductionMode && len(cfg.Secret) < MinProductionSecretBytes {
		return nil, fmt.Errorf("token secret must be at least %d bytes in production mode", MinProductionSecretBytes)
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.RefreshTTL < cfg.AccessTTL {
		return nil, errors.New("refresh TTL must not be shorter than access TTL")
	}
	if cfg.Leeway == 0 {
		cfg.Leeway = DefaultLeeway
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)

	return &Manager{config: cfg, key: deriveKey(cfg.Secret)}, nil
}

func deriveKey(secret []byte) []byte {
	if len(secret) >= MinSecretBytes {
		return append([]byte(nil), secret...)
	}
	sum := sha256.Sum256(secret)
	return sum[:]
}

// TTL returns the configured lifetime for a token type.
func (j *Manager) TTL(typ Type) time.Duration {
	if typ == TypeRefresh {
		return j.config.RefreshTTL
	}
	return j.config.AccessTTL
}

// Create signs a token of the given type for subject.
func (j *Manager) Create(typ Type, subject, role string, perms []string, sessionID, tokenID string) (string, *Claims, error) {
	if typ != TypeAccess && typ != TypeRefresh {
		return "", nil, fmt.Errorf("%w: unknown token type %q", ErrInvalid, typ)
	}
	if subject == "" || sessionID == "" || tokenID == "" {
		return "", nil, errors.New("subject, session id and token id are required")
	}

	now := j.config.Now()
	claims := &Claims{
		Role:      role,
		SessionID: sessionID,
		Type:      typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        tokenID,
			Issuer:    j.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.TTL(typ))),
		},
	}
	if typ == TypeAccess && len(perms) > 0 {
		claims.Permissions = append([]string(nil), perms...)
	}
	if j.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{j.config.Audience}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	if j.config.KeyID != "" {
		token.Header["kid"] = j.config.KeyID
	}

	signed, err := token.SignedString(j.key)
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

// Parse verifies signature, algorithm, issuer, audience, expiry and type.
// Expired tokens yield ErrExpired; everything else yields ErrInvalid.
// Leeway only covers issuers whose clock runs ahead; a token past exp is
// never accepted.
func (j *Manager) Parse(tokenStr string, expected Type) (*Claims, error) {
	claims, err := j.parse(tokenStr, true)
	if err != nil {
		return nil, err
	}
	if claims.Type != expected {
		return nil, fmt.Errorf("%w: expected %s token", ErrInvalid, expected)
	}
	return claims, nil
}

// ParseAllowExpired verifies everything except expiry. Revocation uses it so
// an expired token can be recognised as already harmless.
func (j *Manager) ParseAllowExpired(tokenStr string) (*Claims, error) {
	return j.parse(tokenStr, false)
}

func (j *Manager) parse(tokenStr string, checkExpiry bool) (*Claims, error) {
	if tokenStr == "" {
		return nil, ErrInvalid
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.config.Now),
	}
	if j.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(j.config.Issuer))
	}
	if j.config.Audience != "" {
		options = append(options, jwt.WithAudience(j.config.Audience))
	}
	if !checkExpiry {
		options = append(options, jwt.WithoutClaimsValidation())
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		if j.config.KeyID != "" {
			kid, _ := t.Header["kid"].(string)
			if kid != j.config.KeyID {
				return nil, errors.New("unknown kid")
			}
		}
		return j.key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalid
	}
	if claims.Subject == "" || claims.ID == "" || claims.SessionID == "" {
		return nil, fmt.Errorf("%w: missing required claims", ErrInvalid)
	}
	if claims.IssuedAt == nil {
		return nil, fmt.Errorf("%w: missing iat", ErrInvalid)
	}
	if claims.IssuedAt.Time.After(j.config.Now().Add(j.config.Leeway)) {
		return nil, fmt.Errorf("%w: iat too far in the future", ErrInvalid)
	}
	if !checkExpiry {
		// Claims validation was skipped; issuer and audience still have to match.
		if j.config.Issuer != "" && claims.Issuer != j.config.Issuer {
			return nil, fmt.Errorf("%w: issuer mismatch", ErrInvalid)
		}
		if j.config.Audience != "" && !containsAudience(claims.Audience, j.config.Audience) {
			return nil, fmt.Errorf("%w: audience mismatch", ErrInvalid)
		}
	}

	return claims, nil
}

func containsAudience(aud jwt.ClaimStrings, want string) bool {
	for _, a := range aud {
		if a == want {
			return true
		}
	}
	return false
}
