package accessscope

// IsManager is true for the explicit role or for any rep with direct reports.
func IsManager(s Scope) bool {
	return s.Role == RoleManager || len(s.TeamRepCodes) > 0
}

// CanCreateOrEdit reports whether the scope's role may mutate business records.
// Unknown or missing roles are read-only at best.
func CanCreateOrEdit(s Scope) bool {
	if s.IsAdmin || IsManager(s) {
		return true
	}
	return s.Role == RoleSalesRep
}

// AccessDeniedMessage distinguishes "no role at all" from "read-only role" so
// the dashboard can tell the user what to ask their administrator for.
func AccessDeniedMessage(s Scope) string {
	if s.Role == "" {
		return "Your user has no sales role assigned. Ask an administrator to link your account to a sales profile."
	}
	return "Your role only allows viewing data. Creating or editing records requires a sales or manager role."
}
