// Package registry holds the static instrument tables and resolves the
// server role a host is responsible for.
package registry

import (
	"fmt"
	"sort"
	"strings"
)

//
// ---------- Roles and monitor classes ----------

// ServerRole names the instrument partition a host owns.
type ServerRole string

const (
	RoleServer1 ServerRole = "koaserver1" // leaf role A
	RoleServer2 ServerRole = "koaserver2" // leaf role B
	RoleDev     ServerRole = "koadev"     // combined: server1 + server2
)

// MonitorClass distinguishes the two monitor daemon families. Each class has
// its own instrument membership and its own process-table signature.
type MonitorClass string

const (
	ClassRaw MonitorClass = "raw"
	ClassDRP MonitorClass = "drp"
)

// Classes lists the monitor classes in processing order: a full pass over the
// raw monitors happens before the DRP monitors.
var Classes = []MonitorClass{ClassRaw, ClassDRP}

//
// ---------- Instrument tables ----------

// RoleLists holds the four ordered instrument lists of one leaf role.
// Run lists default to the base lists when left empty.
type RoleLists struct {
	RawBase []string `json:"raw_base" mapstructure:"raw_base"`
	RawRun  []string `json:"raw_run" mapstructure:"raw_run"`
	DRPBase []string `json:"drp_base" mapstructure:"drp_base"`
	DRPRun  []string `json:"drp_run" mapstructure:"drp_run"`
}

// Registry resolves hosts to roles and (role, class) pairs to instrument
// lists. Built once at startup and immutable afterwards. The combined role
// has no membership of its own: its lists are the concatenation of the two
// leaf roles, in leaf order, without deduplication.
type Registry struct {
	hosts map[string]ServerRole
	roles map[ServerRole]RoleLists
}

// New builds a registry from a host table and the two leaf role tables.
// Empty run lists are filled from the corresponding base list.
func New(hosts map[string]ServerRole, roles map[ServerRole]RoleLists) (*Registry, error) {
	r := &Registry{
		hosts: map[string]ServerRole{},
		roles: map[ServerRole]RoleLists{},
	}
	for h, role := range hosts {
		if !role.valid() {
			return nil, fmt.Errorf("registry: host %q maps to unknown role %q", h, role)
		}
		r.hosts[strings.ToLower(h)] = role
	}
	for role, lists := range roles {
		if role == RoleDev {
			return nil, fmt.Errorf("registry: role %q cannot carry its own instrument lists", role)
		}
		if !role.valid() {
			return nil, fmt.Errorf("registry: unknown role %q in instrument tables", role)
		}
		if len(lists.RawRun) == 0 {
			lists.RawRun = append([]string(nil), lists.RawBase...)
		}
		if len(lists.DRPRun) == 0 {
			lists.DRPRun = append([]string(nil), lists.DRPBase...)
		}
		r.roles[role] = lists
	}

	// Every role a host resolves to must have instruments behind it: a valid
	// role with empty lists would make the controller silently do nothing.
	for role := range referencedLeaves(r.hosts) {
		lists := r.roles[role]
		if len(lists.RawBase) == 0 && len(lists.DRPBase) == 0 {
			return nil, fmt.Errorf("registry: role %q is assigned to a host but has no instruments", role)
		}
	}
	return r, nil
}

// referencedLeaves returns the leaf roles reachable from the hosts table; a
// combined-role host reaches both leaves.
func referencedLeaves(hosts map[string]ServerRole) map[ServerRole]bool {
	leaves := map[ServerRole]bool{}
	for _, role := range hosts {
		if role.Combined() {
			leaves[RoleServer1] = true
			leaves[RoleServer2] = true
		} else {
			leaves[role] = true
		}
	}
	return leaves
}

func (role ServerRole) valid() bool {
	switch role {
	case RoleServer1, RoleServer2, RoleDev:
		return true
	}
	return false
}

// Combined reports whether the role is the union of the two leaf roles.
func (role ServerRole) Combined() bool {
	return role == RoleDev
}

//
// ---------- Resolution ----------

// Resolve maps a hostname to its server role. Hostnames are matched on their
// first label, case-insensitively, so FQDNs resolve the same as short names.
func (r *Registry) Resolve(hostname string) (ServerRole, error) {
	short := strings.ToLower(strings.SplitN(hostname, ".", 2)[0])
	if role, ok := r.hosts[short]; ok {
		return role, nil
	}
	known := make([]string, 0, len(r.hosts))
	for h := range r.hosts {
		known = append(known, h)
	}
	sort.Strings(known)
	return "", fmt.Errorf("registry: host %q is not a monitor server (known: %s)",
		hostname, strings.Join(known, ", "))
}

// ParseRole parses a CLI role-override token. Only the leaf roles are valid
// override targets.
func ParseRole(token string) (ServerRole, error) {
	switch ServerRole(strings.ToLower(token)) {
	case RoleServer1:
		return RoleServer1, nil
	case RoleServer2:
		return RoleServer2, nil
	}
	return "", fmt.Errorf("registry: unknown role %q (expected %s or %s)",
		token, RoleServer1, RoleServer2)
}

//
// ---------- List access ----------

// Base returns all instruments the role could ever run for the class.
func (r *Registry) Base(role ServerRole, class MonitorClass) []string {
	return r.lists(role, class, false)
}

// Run returns the instruments acted upon for the class this invocation.
func (r *Registry) Run(role ServerRole, class MonitorClass) []string {
	return r.lists(role, class, true)
}

func (r *Registry) lists(role ServerRole, class MonitorClass, run bool) []string {
	if role.Combined() {
		// Concatenation only; an instrument present in both leaves would be
		// double-counted, which correct configuration rules out.
		out := append([]string(nil), r.lists(RoleServer1, class, run)...)
		return append(out, r.lists(RoleServer2, class, run)...)
	}
	lists := r.roles[role]
	switch {
	case class == ClassRaw && run:
		return lists.RawRun
	case class == ClassRaw:
		return lists.RawBase
	case run:
		return lists.DRPRun
	default:
		return lists.DRPBase
	}
}
