package users

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/odyssey-erp/eventhub/internal/shared"
)

// ActivationTokens issues single-use activation tokens. A token embeds a
// digest of the account state it was issued for; activating the account
// changes that state, so the same token is rejected on replay.
type ActivationTokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

type activationClaims struct {
	jwt.RegisteredClaims
	State string `json:"st"`
}

// NewActivationTokens builds a token generator. ttl defaults to three days.
func NewActivationTokens(secret string, ttl time.Duration) *ActivationTokens {
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &ActivationTokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Make issues a token for the identity's current state.
func (t *ActivationTokens) Make(identity Identity) (string, error) {
	now := t.now().UTC()
	claims := activationClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(identity.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
		State: t.stateDigest(identity),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("users: sign activation token: %w", err)
	}
	return token, nil
}

// Verify checks token against the identity's current state.
func (t *ActivationTokens) Verify(identity Identity, token string) error {
	var claims activationClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithSubject(strconv.FormatInt(identity.ID, 10)),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return errors.Join(shared.ErrInvalidToken, err)
	}
	if !hmac.Equal([]byte(claims.State), []byte(t.stateDigest(identity))) {
		return shared.ErrInvalidToken
	}
	return nil
}

func (t *ActivationTokens) stateDigest(identity Identity) string {
	var lastLogin int64
	if identity.LastLogin != nil {
		lastLogin = identity.LastLogin.UTC().Unix()
	}
	mac := hmac.New(sha256.New, t.secret)
	fmt.Fprintf(mac, "%d|%s|%s|%t|%d", identity.ID, identity.Email, identity.PasswordHash, identity.IsActive, lastLogin)
	return hex.EncodeToString(mac.Sum(nil))
}
