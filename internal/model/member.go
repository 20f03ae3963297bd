package model

import "time"

// Role is one of the two fixed positions inside a family. Private task
// visibility is scoped to a role, not to a concrete member, so it
// survives the pair re-picking roles.
type Role string

const (
	RoleHusband Role = "husband"
	RoleWife    Role = "wife"
)

// Valid reports whether r is one of the two known roles.
func (r Role) Valid() bool {
	return r == RoleHusband || r == RoleWife
}

// Other returns the opposite role.
func (r Role) Other() Role {
	if r == RoleHusband {
		return RoleWife
	}
	return RoleHusband
}

// Member stores a Telegram user together with their family membership.
// Role is empty until chosen, FamilyCode is nil until the member
// creates or joins a family.
type Member struct {
	ID         uint  `gorm:"primaryKey"`
	TelegramID int64 `gorm:"uniqueIndex"`
	Username   string
	Role       Role    `gorm:"type:varchar(20)"`
	FamilyCode *string `gorm:"index;type:varchar(10)"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// InFamily reports whether the member has joined a family.
func (m *Member) InFamily() bool {
	return m.FamilyCode != nil && *m.FamilyCode != ""
}
