// Package device provides the push token registry used for notification delivery.
package device

import (
	"errors"
	"time"
)

// Registry errors.
var (
	ErrInvalidPlatform = errors.New("invalid push platform")
	ErrEmptyToken      = errors.New("push token is empty")
)

// Platform represents the operating system a push token was issued for.
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
)

// LegacyPlatform is assumed for a legacy token stored without a platform.
const LegacyPlatform = PlatformAndroid

// Valid reports whether p is a supported platform.
func (p Platform) Valid() bool {
	return p == PlatformIOS || p == PlatformAndroid
}

// Token is a push delivery target for one installed app instance.
type Token struct {
	Value    string
	Platform Platform
}

// Last4 returns the last 4 characters of the token for logging.
func (t Token) Last4() string {
	if len(t.Value) < 4 {
		return t.Value
	}
	return t.Value[len(t.Value)-4:]
}

// Registration is a stored token record belonging to a user.
type Registration struct {
	UserID    string
	Token     Token
	CreatedAt time.Time
	UpdatedAt time.Time
}
