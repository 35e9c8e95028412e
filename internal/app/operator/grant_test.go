package operator

import (
	"testing"
	"time"

	"github.com/form3tech-oss/jwt-go"
)

func TestIssueAndVerify(t *testing.T) {
	svc := NewService("test-secret", "", time.Hour)
	token, err := svc.Issue("user123", CapabilityStart, CapabilityBypass)
	if err != nil {
		t.Fatalf("issue error: %v", err)
	}

	grant, err := svc.Verify(token)
	if err != nil {
		t.Fatalf("verify error: %v", err)
	}
	if grant.Subject != "user123" {
		t.Fatalf("subject = %s, want user123", grant.Subject)
	}
	if !grant.Has(CapabilityStart) || !grant.Has(CapabilityBypass) {
		t.Fatalf("capabilities = %v, want start and bypass", grant.Capabilities)
	}
	if grant.Has(CapabilityReload) {
		t.Fatal("grant should not carry reload")
	}
	if time.Until(grant.ExpiresAt) <= 0 {
		t.Fatalf("expires at %v, want the future", grant.ExpiresAt)
	}
}

func TestVerifyRejects(t *testing.T) {
	svc := NewService("test-secret", "", time.Hour)

	expired := NewService("test-secret", "", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expiredToken, err := expired.Issue("user", CapabilityStart)
	if err != nil {
		t.Fatalf("issue error: %v", err)
	}

	otherKey, err := NewService("other-secret", "", time.Hour).Issue("user", CapabilityStart)
	if err != nil {
		t.Fatalf("issue error: %v", err)
	}

	otherIssuer, err := NewService("test-secret", "someone-else", time.Hour).Issue("user", CapabilityStart)
	if err != nil {
		t.Fatalf("issue error: %v", err)
	}

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"iss": DefaultIssuer, "sub": "user"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none error: %v", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{name: "expired", token: expiredToken},
		{name: "wrong key", token: otherKey},
		{name: "wrong issuer", token: otherIssuer},
		{name: "unsigned", token: unsigned},
		{name: "garbage", token: "not-a-token"},
	}
	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			if _, err := svc.Verify(test.token); err == nil {
				t.Fatal("expected verify to fail")
			}
		})
	}
}

func TestIssueRequiresConfig(t *testing.T) {
	if _, err := NewService("", "", time.Hour).Issue("user", CapabilityStart); err == nil {
		t.Fatal("expected error without a secret")
	}
	svc := NewService("secret", "", time.Hour)
	if _, err := svc.Issue("", CapabilityStart); err == nil {
		t.Fatal("expected error for empty subject")
	}
	if _, err := svc.Issue("user"); err == nil {
		t.Fatal("expected error without capabilities")
	}
	if _, err := svc.Issue("user", Capability("admin")); err == nil {
		t.Fatal("expected error for unknown capability")
	}
}

func TestParseCapability(t *testing.T) {
	if c, err := ParseCapability("reload"); err != nil || c != CapabilityReload {
		t.Fatalf("ParseCapability(reload) = %v, %v", c, err)
	}
	if _, err := ParseCapability("root"); err == nil {
		t.Fatal("expected error for unknown capability")
	}
}
