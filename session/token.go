package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"coselect/workflow"
)

var ErrInvalidToken = errors.New("session: invalid token")

// Issuer signs session contexts into HS256 tokens and reads them back.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	i.now = now
	return i
}

// Issue returns a signed token carrying sc.
func (i *Issuer) Issue(sc Context) (string, error) {
	now := i.now()
	claims := jwt.MapClaims{
		"user_id": sc.Actor.ID,
		"name":    sc.Actor.Name,
		"role":    string(sc.Actor.Role),
		"preset":  string(sc.ViewPreset),
		"exp":     now.Add(i.ttl).Unix(),
		"iat":     now.Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("session: sign token: %w", err)
	}
	return token, nil
}

// Parse verifies a token and returns the session it carries.
func (i *Issuer) Parse(tokenString string) (Context, error) {
	token, err := jwt.Parse(tokenString, func(*jwt.Token) (any, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(i.now))
	if err != nil {
		return Context{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Context{}, ErrInvalidToken
	}
	userID, _ := claims["user_id"].(string)
	if userID == "" {
		return Context{}, fmt.Errorf("%w: missing user_id", ErrInvalidToken)
	}
	roleStr, _ := claims["role"].(string)
	role, ok := workflow.ParseRole(roleStr)
	if !ok {
		return Context{}, fmt.Errorf("%w: role %q", ErrInvalidToken, roleStr)
	}
	name, _ := claims["name"].(string)
	preset, _ := claims["preset"].(string)
	if !ViewPreset(preset).Valid() {
		preset = string(DefaultPreset(role))
	}

	return Context{
		Actor:      workflow.Actor{ID: userID, Name: name, Role: role},
		ViewPreset: ViewPreset(preset),
	}, nil
}
