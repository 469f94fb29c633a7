package rbac

import (
	"fmt"
	"sort"
	"strings"

	"github.com/assetdesk/assetdesk/internal/shared"
)

// Capability is one of the four permission bits a module grants.
type Capability int

const (
	CapabilityView Capability = iota + 1
	CapabilityCreate
	CapabilityEdit
	CapabilityDelete
)

var capabilityNames = map[Capability]string{
	CapabilityView:   "view",
	CapabilityCreate: "create",
	CapabilityEdit:   "edit",
	CapabilityDelete: "delete",
}

// ErrUnknownCapability rejects action names outside the closed set.
var ErrUnknownCapability = fmt.Errorf("%w: unknown capability", shared.ErrValidation)

// ErrUnknownModule rejects module names not registered in Modules.
var ErrUnknownModule = fmt.Errorf("%w: unknown module", shared.ErrValidation)

// ErrDuplicateModule rejects a set naming the same module twice, e.g. "assets" and "Assets".
var ErrDuplicateModule = fmt.Errorf("%w: duplicate module", shared.ErrValidation)

// ParseCapability maps an action name to a Capability.
func ParseCapability(raw string) (Capability, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "view":
		return CapabilityView, nil
	case "create":
		return CapabilityCreate, nil
	case "edit":
		return CapabilityEdit, nil
	case "delete":
		return CapabilityDelete, nil
	}
	return 0, fmt.Errorf("%w %q", ErrUnknownCapability, raw)
}

func (c Capability) String() string {
	if name, ok := capabilityNames[c]; ok {
		return name
	}
	return fmt.Sprintf("capability(%d)", int(c))
}

// Capabilities is the stored row for one (principal, module) pair.
type Capabilities struct {
	View   bool `json:"view"`
	Create bool `json:"create"`
	Edit   bool `json:"edit"`
	Delete bool `json:"delete"`
}

// Allows reports the bit for c.
func (c Capabilities) Allows(capability Capability) bool {
	switch capability {
	case CapabilityView:
		return c.View
	case CapabilityCreate:
		return c.Create
	case CapabilityEdit:
		return c.Edit
	case CapabilityDelete:
		return c.Delete
	}
	return false
}

// Empty reports whether no bit is set.
func (c Capabilities) Empty() bool {
	return c == Capabilities{}
}

// Modules gated independently by the engine.
const (
	ModuleAssets        = "assets"
	ModuleTickets       = "tickets"
	ModuleProjects      = "projects"
	ModuleInventory     = "inventory"
	ModuleNetwork       = "network"
	ModuleUsers         = "users"
	ModuleAudit         = "audit"
	ModuleNotifications = "notifications"
	ModuleDashboard     = "dashboard"
	ModuleReports       = "reports"
)

var knownModules = map[string]struct{}{
	ModuleAssets:        {},
	ModuleTickets:       {},
	ModuleProjects:      {},
	ModuleInventory:     {},
	ModuleNetwork:       {},
	ModuleUsers:         {},
	ModuleAudit:         {},
	ModuleNotifications: {},
	ModuleDashboard:     {},
	ModuleReports:       {},
}

// Modules lists registered module names in sorted order.
func Modules() []string {
	out := make([]string, 0, len(knownModules))
	for m := range knownModules {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// KnownModule reports whether name is registered.
func KnownModule(name string) bool {
	_, ok := knownModules[name]
	return ok
}

// PermissionSet maps module names to capabilities.
type PermissionSet map[string]Capabilities
