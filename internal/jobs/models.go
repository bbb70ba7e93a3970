package jobs

import (
	"time"

	"github.com/google/uuid"
)

// MemberRole is a user's role inside an employer account
type MemberRole string

const (
	MemberRoleAdmin  MemberRole = "ADMIN"
	MemberRoleMember MemberRole = "MEMBER"
)

// Employer is a company account that posts jobs
type Employer struct {
	ID          uuid.UUID        `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	Name        string           `json:"name" gorm:"not null"`
	OwnerUserID uuid.UUID        `json:"owner_user_id" gorm:"type:uuid;not null;index"`
	Members     []EmployerMember `json:"members,omitempty" gorm:"foreignKey:EmployerID"`
	CreatedAt   time.Time        `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time        `json:"updated_at" gorm:"autoUpdateTime"`
}

// EmployerMember links a user to an employer account
type EmployerMember struct {
	EmployerID uuid.UUID  `json:"employer_id" gorm:"primaryKey;type:uuid"`
	UserID     uuid.UUID  `json:"user_id" gorm:"primaryKey;type:uuid;index"`
	Role       MemberRole `json:"role" gorm:"not null;default:MEMBER"`
	CreatedAt  time.Time  `json:"created_at" gorm:"autoCreateTime"`
}

// Job is a posting applications are submitted against
type Job struct {
	ID         uuid.UUID `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	EmployerID uuid.UUID `json:"employer_id" gorm:"type:uuid;not null;index"`
	Employer   Employer  `json:"employer" gorm:"foreignKey:EmployerID"`
	Title      string    `json:"title" gorm:"not null"`
	Slug       string    `json:"slug" gorm:"uniqueIndex"`
	IsActive   bool      `json:"is_active" gorm:"not null"`
	CreatedAt  time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt  time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// CanManage reports whether userID owns the employer or administers it
func (e *Employer) CanManage(userID uuid.UUID) bool {
	if userID == uuid.Nil {
		return false
	}
	if e.OwnerUserID == userID {
		return true
	}
	for _, m := range e.Members {
		if m.UserID == userID && m.Role == MemberRoleAdmin {
			return true
		}
	}
	return false
}
