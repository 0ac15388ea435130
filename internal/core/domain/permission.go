package domain

import "iter"

// PageKey identifies a navigable section of the application. It is the unit of
// permission granularity.
type PageKey string

const (
	PageDashboard   PageKey = "dashboard"
	PageTasks       PageKey = "tasks"
	PageProjects    PageKey = "projects"
	PageCompanies   PageKey = "companies"
	PageUsers       PageKey = "users"
	PageReports     PageKey = "reports"
	PageAdminPanel  PageKey = "admin_panel"
	PagePayments    PageKey = "payments"
	PageCommissions PageKey = "commissions"
	PageCarFinance  PageKey = "car_finance"
	PageDailyCalls  PageKey = "daily_calls"
	PageDocuments   PageKey = "documents"
	PageContacts    PageKey = "contacts"
	PageGroups      PageKey = "groups"
	PageEvents      PageKey = "events"
	PageProfile     PageKey = "profile"
)

// AllPages is the canonical ordering of page keys, used to build navigation.
var AllPages = []PageKey{
	PageDashboard, PageTasks, PageProjects, PageCompanies, PageUsers,
	PageReports, PageAdminPanel, PagePayments, PageCommissions,
	PageCarFinance, PageDailyCalls, PageDocuments, PageContacts,
	PageGroups, PageEvents, PageProfile,
}

// AccessLevel is the capability granted for a page key. The boolean view used
// for route gating ("can access") and the tri-state view used by the admin
// permission editor are two projections of this one value: AccessView and
// AccessEdit both imply access, AccessNone denies it.
type AccessLevel string

const (
	AccessNone AccessLevel = "none"
	AccessView AccessLevel = "view"
	AccessEdit AccessLevel = "edit"
)

// Granted is the boolean projection of the level.
func (a AccessLevel) Granted() bool { return a == AccessView || a == AccessEdit }

// UnmarshalJSON accepts both universes found on the wire: the tri-state
// strings and the legacy booleans (true → edit, false → none).
func (a *AccessLevel) UnmarshalJSON(b []byte) error {
	switch string(b) {
	case "true":
		*a = AccessEdit
	case "false", "null":
		*a = AccessNone
	case `"none"`, `"view"`, `"edit"`:
		*a = AccessLevel(b[1 : len(b)-1])
	default:
		// Unknown levels deny rather than fail the whole profile decode.
		*a = AccessNone
	}
	return nil
}

// PermissionMap holds per-user page overrides keyed by page.
type PermissionMap map[PageKey]AccessLevel

// roleDefaults is the static per-role default table. Admin is absent on
// purpose: ResolveAccess grants admins everything before consulting tables.
var roleDefaults = map[Role]PermissionMap{
	RoleManager: {
		PageDashboard:   AccessEdit,
		PageTasks:       AccessEdit,
		PageProjects:    AccessEdit,
		PageCompanies:   AccessEdit,
		PageUsers:       AccessView,
		PageReports:     AccessView,
		PagePayments:    AccessEdit,
		PageCommissions: AccessEdit,
		PageCarFinance:  AccessEdit,
		PageDailyCalls:  AccessEdit,
		PageDocuments:   AccessEdit,
		PageContacts:    AccessEdit,
		PageGroups:      AccessEdit,
		PageEvents:      AccessEdit,
		PageProfile:     AccessEdit,
	},
	RoleMember: {
		PageDashboard:  AccessEdit,
		PageTasks:      AccessEdit,
		PageProjects:   AccessView,
		PageCompanies:  AccessView,
		PageDailyCalls: AccessEdit,
		PageDocuments:  AccessView,
		PageContacts:   AccessView,
		PageGroups:     AccessView,
		PageEvents:     AccessEdit,
		PageProfile:    AccessEdit,
	},
	RoleViewer: {
		PageDashboard: AccessView,
		PageTasks:     AccessView,
		PageProjects:  AccessView,
		PageContacts:  AccessView,
		PageProfile:   AccessView,
	},
}

// ResolveAccess returns the effective access level for user and page.
//
// Rules, in order:
//  1. No user (unauthenticated): AccessNone for every key.
//  2. Admin: AccessEdit unconditionally, ignoring stored overrides, so an
//     admin can never lock themselves out.
//  3. Explicit per-user override, when present.
//  4. The role-default table for the user's role; unrecognised roles use the
//     member table.
//  5. A key absent everywhere resolves to AccessNone. Never panics.
func ResolveAccess(u *User, page PageKey) AccessLevel {
	if u == nil {
		return AccessNone
	}
	if u.Role == RoleAdmin {
		return AccessEdit
	}
	if lvl, ok := u.Permissions[page]; ok {
		return lvl
	}
	defaults, ok := roleDefaults[u.Role]
	if !ok {
		defaults = roleDefaults[RoleMember]
	}
	if lvl, ok := defaults[page]; ok {
		return lvl
	}
	return AccessNone
}

// AccessiblePages yields, in canonical order, every page key the user may
// access. The sequence is finite and restartable; it exists so navigation
// menus do not duplicate the resolution rules per page.
func AccessiblePages(u *User) iter.Seq[PageKey] {
	return func(yield func(PageKey) bool) {
		for _, page := range AllPages {
			if !ResolveAccess(u, page).Granted() {
				continue
			}
			if !yield(page) {
				return
			}
		}
	}
}
