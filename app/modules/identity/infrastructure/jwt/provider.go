package identityjwt

import (
	"errors"
	"fmt"
	"time"

	identitydomain "github.com/Black-And-White-Club/reverse-chorus/app/modules/identity/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Provider signs and verifies audio grants.
type Provider interface {
	Sign(grant identitydomain.AudioGrant, ttl time.Duration) (string, error)
	Verify(tokenString string) (*identitydomain.AudioGrant, error)
}

// grantClaims represents the JWT claims structure.
type grantClaims struct {
	jwt.RegisteredClaims
	RoundID string `json:"round_id"`
	Kind    string `json:"kind"`
	OwnerID string `json:"owner_id"`
}

type provider struct {
	secret []byte
}

// NewProvider creates a new grant provider.
func NewProvider(secret string) Provider {
	return &provider{
		secret: []byte(secret),
	}
}

// Sign creates an HS256 token for grant. The player id is the subject.
func (p *provider) Sign(grant identitydomain.AudioGrant, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &grantClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   grant.PlayerID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		RoundID: grant.RoundID.String(),
		Kind:    string(grant.Kind),
		OwnerID: grant.OwnerID.String(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign grant: %w", err)
	}

	return signedToken, nil
}

// Verify validates tokenString and returns the grant it carries.
func (p *provider) Verify(tokenString string) (*identitydomain.AudioGrant, error) {
	token, err := jwt.ParseWithClaims(tokenString, &grantClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidSignature
		}
		return p.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return nil, ErrInvalidSignature
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*grantClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	grant := &identitydomain.AudioGrant{Kind: identitydomain.GrantKind(claims.Kind)}
	if !grant.Kind.Valid() {
		return nil, ErrInvalidToken
	}
	if grant.PlayerID, err = uuid.Parse(claims.Subject); err != nil {
		return nil, ErrInvalidToken
	}
	if grant.RoundID, err = uuid.Parse(claims.RoundID); err != nil {
		return nil, ErrInvalidToken
	}
	if grant.OwnerID, err = uuid.Parse(claims.OwnerID); err != nil {
		return nil, ErrInvalidToken
	}
	if claims.ExpiresAt != nil {
		grant.ExpiresAt = claims.ExpiresAt.Time
	}

	return grant, nil
}
