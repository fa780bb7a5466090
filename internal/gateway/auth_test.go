package gateway

import (
	"testing"
	"time"

	"github.com/soyeahso/vyrtuous/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestSafeEqual(t *testing.T) {
	assert.True(t, safeEqual("secret", "secret"))
	assert.True(t, safeEqual("", ""))
	assert.False(t, safeEqual("secret", "wrong"))
	assert.False(t, safeEqual("short", "longer-string"))
	assert.False(t, safeEqual("secret", ""))
}

func TestResolveAuth(t *testing.T) {
	t.Run("config wins", func(t *testing.T) {
		t.Setenv("VYRTUOUS_GATEWAY_TOKEN", "from-env")
		auth := ResolveAuth(config.GatewayAuth{Token: "from-config"})
		assert.Equal(t, AuthModeToken, auth.Mode)
		assert.Equal(t, "from-config", auth.Token)
	})

	t.Run("env fallback", func(t *testing.T) {
		t.Setenv("VYRTUOUS_GATEWAY_TOKEN", "from-env")
		auth := ResolveAuth(config.GatewayAuth{})
		assert.Equal(t, "from-env", auth.Token)
	})

	t.Run("password implies password mode", func(t *testing.T) {
		t.Setenv("VYRTUOUS_GATEWAY_PASSWORD", "")
		auth := ResolveAuth(config.GatewayAuth{Password: "hunter2"})
		assert.Equal(t, AuthModePassword, auth.Mode)
	})

	t.Run("explicit mode kept", func(t *testing.T) {
		auth := ResolveAuth(config.GatewayAuth{Mode: AuthModeToken, Password: "p"})
		assert.Equal(t, AuthModeToken, auth.Mode)
	})
}

func TestAuthorize(t *testing.T) {
	tokenAuth := ResolvedAuth{Mode: AuthModeToken, Token: "t0k"}
	passAuth := ResolvedAuth{Mode: AuthModePassword, Password: "pw"}

	tests := []struct {
		name   string
		server ResolvedAuth
		client *ConnectAuth
		ok     bool
		reason string
	}{
		{"no credentials", tokenAuth, nil, false, "no credentials provided"},
		{"token ok", tokenAuth, &ConnectAuth{Token: "t0k"}, true, ""},
		{"token missing", tokenAuth, &ConnectAuth{}, false, "token required"},
		{"token mismatch", tokenAuth, &ConnectAuth{Token: "nope"}, false, "token_mismatch"},
		{"token unconfigured", ResolvedAuth{Mode: AuthModeToken}, &ConnectAuth{Token: "x"}, false, "server token not configured"},
		{"password ok", passAuth, &ConnectAuth{Password: "pw"}, true, ""},
		{"password mismatch", passAuth, &ConnectAuth{Password: "no"}, false, "password_mismatch"},
		{"token does not satisfy password mode", passAuth, &ConnectAuth{Token: "pw"}, false, "password required"},
		{"unknown mode", ResolvedAuth{Mode: "oauth"}, &ConnectAuth{Token: "x"}, false, "unknown auth mode: oauth"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Authorize(tt.server, tt.client)
			assert.Equal(t, tt.ok, res.OK)
			assert.Equal(t, tt.reason, res.Reason)
			if tt.ok {
				assert.Equal(t, tt.server.Mode, res.Method)
			}
		})
	}
}

func TestAuthLimiter(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := newAuthLimiter()
	l.now = func() time.Time { return now }

	for i := 0; i < authRateMaxFails-1; i++ {
		l.recordFailure("10.0.0.1:5000")
	}
	assert.True(t, l.allow("10.0.0.1:6000"))

	l.recordFailure("10.0.0.1:7000")
	assert.False(t, l.allow("10.0.0.1:8000"), "port does not matter")
	assert.True(t, l.allow("10.0.0.2:5000"))

	now = now.Add(authRateWindow + time.Second)
	assert.True(t, l.allow("10.0.0.1:5000"))
	assert.Empty(t, l.failures)
}

func TestAuthLimiterSweep(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := newAuthLimiter()
	l.now = func() time.Time { return now }

	l.recordFailure("10.0.0.1:1")
	l.recordFailure("10.0.0.2:1")
	now = now.Add(authRateWindow + time.Second)
	l.recordFailure("10.0.0.3:1")

	l.sweep()
	assert.Len(t, l.failures, 1)
	assert.Contains(t, l.failures, "10.0.0.3")
}

func TestHostOf(t *testing.T) {
	assert.Equal(t, "10.0.0.1", hostOf("10.0.0.1:5000"))
	assert.Equal(t, "::1", hostOf("[::1]:5000"))
	assert.Equal(t, "bare", hostOf("bare"))
}
