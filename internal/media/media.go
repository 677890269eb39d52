// Package media mints room-access credentials for the external real-time
// media service. The engine never touches audio or video; it only hands
// opaque tokens to hosts and viewers.
package media

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
)

// ErrUnavailable is returned when a credential cannot be issued.
var ErrUnavailable = errors.New("media service unavailable")

const defaultTokenExpiration = 4 * time.Hour

const (
	roomClaim      = "room"
	identityClaim  = "identity"
	publisherClaim = "publisher"
	expClaim       = "exp"
)

// TokenIssuer mints a room-access credential for an identity. Publisher
// grants allow pushing media into the room; viewers only pull.
type TokenIssuer interface {
	IssueRoomToken(ctx context.Context, room, identity string, publisher bool) (string, error)
}

// JWTIssuer signs room grants with a shared secret. The media service
// validates the same claims on its side.
type JWTIssuer struct {
	signingKey []byte
	expiration time.Duration
}

func NewJWTIssuer(signingKey []byte) (*JWTIssuer, error) {
	if len(signingKey) == 0 {
		return nil, fmt.Errorf("signing key cannot be empty")
	}

	return &JWTIssuer{
		signingKey: signingKey,
		expiration: defaultTokenExpiration,
	}, nil
}

func (j *JWTIssuer) IssueRoomToken(_ context.Context, room, identity string, publisher bool) (string, error) {
	if room == "" || identity == "" {
		return "", fmt.Errorf("%w: room and identity required", ErrUnavailable)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		roomClaim:      room,
		identityClaim:  identity,
		publisherClaim: publisher,
		expClaim:       time.Now().Add(j.expiration).Unix(),
	})

	signed, err := token.SignedString(j.signingKey)
	if err != nil {
		return "", fmt.Errorf("%w: sign token: %v", ErrUnavailable, err)
	}

	return signed, nil
}

// VerifyRoomToken parses a credential previously issued by this issuer.
// Only used in tests and by the local development media stub.
func (j *JWTIssuer) VerifyRoomToken(tokenString string) (room, identity string, publisher bool, err error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		return j.signingKey, nil
	})
	if err != nil {
		return "", "", false, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", "", false, fmt.Errorf("invalid token claims")
	}

	room, _ = claims[roomClaim].(string)
	identity, _ = claims[identityClaim].(string)
	publisher, _ = claims[publisherClaim].(bool)
	return room, identity, publisher, nil
}
