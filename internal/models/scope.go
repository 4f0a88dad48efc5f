package models

// Scope is the institution visibility of the acting staff user. It is passed
// explicitly into every core operation; there is no ambient "current
// institution" state. Data access enforces it: records outside the scope
// behave exactly as if they did not exist.
type Scope struct {
	// ActorID is the staff user performing the operation.
	ActorID string

	// InstitutionID is the institution the actor may see.
	// Ignored when Platform is true.
	InstitutionID string

	// Platform grants visibility over all institutions.
	Platform bool
}

// Allows reports whether the scope may see records of the given institution.
func (s Scope) Allows(institutionID string) bool {
	if s.Platform {
		return true
	}
	return s.InstitutionID != "" && s.InstitutionID == institutionID
}
