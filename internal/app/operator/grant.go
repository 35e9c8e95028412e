// Package operator issues and verifies the signed grants that let a player run operator
// commands or walk through locked teleports.
package operator

import (
	"fmt"
	"time"

	"github.com/form3tech-oss/jwt-go"
	"github.com/google/uuid"
)

// Capability is one operator permission.
type Capability string

const (
	CapabilityStart  Capability = "start"
	CapabilityReload Capability = "reload"
	CapabilityBypass Capability = "bypass"
)

const DefaultIssuer = "deadoralive"

var known = map[Capability]bool{
	CapabilityStart:  true,
	CapabilityReload: true,
	CapabilityBypass: true,
}

// ParseCapability validates a capability name.
func ParseCapability(name string) (Capability, error) {
	c := Capability(name)
	if !known[c] {
		return "", fmt.Errorf("unknown capability: %s", name)
	}
	return c, nil
}

// Grant is a verified set of capabilities for one user.
type Grant struct {
	Subject      string
	Capabilities []Capability
	ExpiresAt    time.Time
}

// Has reports whether the grant carries c.
func (g Grant) Has(c Capability) bool {
	for _, have := range g.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

type Service struct {
	secret string
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewService(secret, issuer string, ttl time.Duration) *Service {
	if issuer == "" {
		issuer = DefaultIssuer
	}
	return &Service{secret: secret, issuer: issuer, ttl: ttl, now: time.Now}
}

// Enabled reports whether grants can be issued and verified.
func (s *Service) Enabled() bool {
	return s != nil && s.secret != ""
}

// Issue signs a grant for subject.
func (s *Service) Issue(subject string, caps ...Capability) (string, error) {
	if !s.Enabled() {
		return "", fmt.Errorf("operator secret is not configured")
	}
	if subject == "" {
		return "", fmt.Errorf("subject is required")
	}
	if len(caps) == 0 {
		return "", fmt.Errorf("at least one capability is required")
	}
	names := make([]string, 0, len(caps))
	for _, c := range caps {
		if !known[c] {
			return "", fmt.Errorf("unknown capability: %s", c)
		}
		names = append(names, string(c))
	}

	now := s.now()
	claims := jwt.MapClaims{
		"iss":  s.issuer,
		"sub":  subject,
		"iat":  now.Unix(),
		"exp":  now.Add(s.ttl).Unix(),
		"jti":  uuid.NewString(),
		"caps": names,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.secret))
}

// Verify checks the signature, issuer and expiry of a grant token.
func (s *Service) Verify(tokenString string) (Grant, error) {
	if !s.Enabled() {
		return Grant{}, fmt.Errorf("operator secret is not configured")
	}
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.secret), nil
	})
	if err != nil {
		return Grant{}, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Grant{}, fmt.Errorf("invalid grant")
	}
	if !claims.VerifyIssuer(s.issuer, true) {
		return Grant{}, fmt.Errorf("unexpected issuer")
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return Grant{}, fmt.Errorf("grant has no subject")
	}
	g := Grant{Subject: sub}
	if exp, ok := claims["exp"].(float64); ok {
		g.ExpiresAt = time.Unix(int64(exp), 0)
	}
	raw, _ := claims["caps"].([]interface{})
	for _, v := range raw {
		name, _ := v.(string)
		if c, err := ParseCapability(name); err == nil {
			g.Capabilities = append(g.Capabilities, c)
		}
	}
	return g, nil
}
