package entity

import "time"

// Actor roles on the hiring platform.
const (
	RoleRecruiter = "recruiter"
	RoleApplicant = "applicant"
)

// Actor is a signed-in recruiter or applicant, identified by the stable uid
// the authentication provider assigns.
type Actor struct {
	ID          string    `json:"id" firestore:"id"`
	Email       string    `json:"email" firestore:"email"`
	DisplayName string    `json:"display_name" firestore:"displayName"`
	AvatarURL   string    `json:"avatar_url,omitempty" firestore:"avatarURL,omitempty"`
	Role        string    `json:"role" firestore:"role"`
	CompanyName string    `json:"company_name,omitempty" firestore:"companyName,omitempty"`
	CreatedAt   time.Time `json:"created_at" firestore:"createdAt"`
	UpdatedAt   time.Time `json:"updated_at" firestore:"updatedAt"`
}
