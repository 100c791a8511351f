package classify

import "strings"

// Role is one classification a candidate may hold. Roles are derived
// independently and are not mutually exclusive except where a rule says so.
type Role uint8

const (
	RoleInjectable Role = iota
	RolePlugin
	RoleDecorator
	RoleInterceptor
	RoleIntercepted
	RoleFactory
	RoleOptions
	RoleHosted
	roleCount
)

var roleNames = [roleCount]string{
	"injectable",
	"plugin",
	"decorator",
	"interceptor",
	"intercepted",
	"factory",
	"options",
	"hosted",
}

func (r Role) String() string {
	if int(r) < len(roleNames) {
		return roleNames[r]
	}
	return "unknown"
}

// RoleSet is a bitset of roles.
type RoleSet uint16

func (s RoleSet) Has(r Role) bool {
	return s&(1<<r) != 0
}

func (s RoleSet) With(r Role) RoleSet {
	return s | (1 << r)
}

func (s RoleSet) Empty() bool {
	return s == 0
}

// Names returns the role names in declaration order, for display.
func (s RoleSet) Names() []string {
	var out []string
	for r := Role(0); r < roleCount; r++ {
		if s.Has(r) {
			out = append(out, r.String())
		}
	}
	return out
}

func (s RoleSet) String() string {
	if s.Empty() {
		return "none"
	}
	return strings.Join(s.Names(), "+")
}
