// Package version centralizes the dotted-integer version strings each
// role advertises in its VER control frame.
package version

import "github.com/soebridge/soe/internal/codec"

// Default versions per role.
const (
	Server = "0.0.53"
	Bridge = "0.0.70"
	Client = "0.0.70"
)

// ForRole returns the default version string advertised by a role.
func ForRole(role codec.Role) string {
	switch role {
	case codec.RoleServer:
		return Server
	case codec.RoleBridge:
		return Bridge
	case codec.RoleClient:
		return Client
	default:
		return "0.0.0"
	}
}
