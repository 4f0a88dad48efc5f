package models

// Member is one savings-group member in the institution's directory.
// The reconciliation core only reads members: it checks institution
// membership during allocation and looks members up by phone hash for
// suggestions. Directory management lives elsewhere.
type Member struct {
	// ID is the unique identifier for the member (UUID format).
	ID string

	// InstitutionID is the institution this member belongs to.
	InstitutionID string

	// Name is the member's display name.
	Name string

	// Phone is the member's normalized phone number, if known.
	Phone string

	// PhoneHash is the hash of the normalized phone, used as the lookup
	// index for payment suggestions. Empty when Phone is empty.
	PhoneHash string

	// GroupID is the savings group the member belongs to, if any.
	GroupID string

	// BalanceMinor is the member's current savings balance in minor units,
	// surfaced on suggestions so staff can sanity-check a match.
	BalanceMinor int64

	// CreatedAt is the Unix timestamp the member was registered.
	CreatedAt int64
}

// Group is a savings group within an institution.
type Group struct {
	// ID is the unique identifier for the group (UUID format).
	ID string

	// InstitutionID is the institution this group belongs to.
	InstitutionID string

	// Name is the display name of the group.
	Name string

	// CreatedAt is the Unix timestamp the group was created.
	CreatedAt int64
}
