package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/aura-webinar/venue/internal/models"
)

var (
	ErrInvalidToken = errors.New("invalid token")
)

// Claims holds the attendee token claims issued by the event's ticketing side.
type Claims struct {
	UserID string   `json:"uid"`
	Traits []string `json:"traits,omitempty"`
	jwt.RegisteredClaims
}

// JWTService validates and issues world-scoped bearer tokens.
// Worlds may carry their own secret; the service's secret is the fallback.
type JWTService struct {
	secret   []byte
	issuer   string
	audience string
}

// NewJWTService creates a JWT service with the fallback secret, issuer and audience.
func NewJWTService(secret, issuer, audience string) *JWTService {
	return &JWTService{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
	}
}

func (s *JWTService) keyFor(world *models.World) (secret []byte, issuer, audience string) {
	secret, issuer, audience = s.secret, s.issuer, s.audience
	if world != nil && world.JWTSecret != "" {
		secret, issuer, audience = []byte(world.JWTSecret), world.JWTIssuer, world.JWTAudience
	}
	return secret, issuer, audience
}

// Generate creates a token for uid in the given world, valid for ttl.
func (s *JWTService) Generate(world *models.World, uid string, traits []string, ttl time.Duration) (string, error) {
	secret, issuer, audience := s.keyFor(world)
	claims := Claims{
		UserID: uid,
		Traits: traits,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    issuer,
			ID:        uuid.New().String(),
		},
	}
	if audience != "" {
		claims.Audience = jwt.ClaimStrings{audience}
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// Decode parses and validates a token against the world's key, returning claims or ErrInvalidToken.
func (s *JWTService) Decode(world *models.World, tokenString string) (*Claims, error) {
	secret, issuer, audience := s.keyFor(world)
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, opts...)
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
