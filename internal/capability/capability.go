// Package capability is the closed enumeration of privileged operations
// the policy layer knows about. Statically known capabilities are typed
// constants checked at compile time; only the RPC boundary, where the
// capability arrives as a string, goes through Parse.
package capability

import (
	"errors"

	"promptpilot/trustd/internal/trusterr"
)

type Capability string

const (
	AdminUnlock       Capability = "admin.unlock"
	AdminViewLogs     Capability = "admin.view_logs"
	UserCreateProfile Capability = "user.create_profile"
	UserUnlockProfile Capability = "user.unlock_profile"
	ConsentRequest    Capability = "consent.request"
	ConsentVerify     Capability = "consent.verify"
	LogsAppend        Capability = "logs.append"
	LogsRead          Capability = "logs.read"
	SettingsWrite     Capability = "settings.write"
)

var ErrUnknownCapability = errors.New("unknown capability")

var all = map[Capability]struct{}{
	AdminUnlock:       {},
	AdminViewLogs:     {},
	UserCreateProfile: {},
	UserUnlockProfile: {},
	ConsentRequest:    {},
	ConsentVerify:     {},
	LogsAppend:        {},
	LogsRead:          {},
	SettingsWrite:     {},
}

// Parse maps a runtime-decided capability string onto the enumeration.
func Parse(s string) (Capability, error) {
	c := Capability(s)
	if _, ok := all[c]; !ok {
		return "", trusterr.Newf(trusterr.KindFormat, "%v: %q", ErrUnknownCapability, s)
	}
	return c, nil
}

// Allowed reports whether c is a known, permitted capability.
func Allowed(c Capability) bool {
	_, ok := all[c]
	return ok
}
