package accounts

import (
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/uptrace/bun"
)

// UserRole is the role granted to a user in the relationship engine
type UserRole = string

const (
	// RoleClient is a regular account
	RoleClient UserRole = "client"
	// RoleSuperuser is an administrative account
	RoleSuperuser UserRole = "superuser"
)

// User is the primary entity. The password hash never serializes outward.
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            int64      `bun:"id,pk,autoincrement" json:"id,omitempty"`
	Email         string     `bun:"email,notnull,unique" json:"email,omitempty"`
	Username      string     `bun:"username,notnull" json:"username,omitempty"`
	PasswordHash  string     `bun:"password_hash,notnull" json:"-"`
	IsActive      bool       `bun:"is_active,notnull" json:"is_active"`
	IsSuperuser   bool       `bun:"is_superuser,notnull" json:"is_superuser"`
	AvatarURL     string     `bun:"avatar_url" json:"avatar_url,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// Role maps the superuser flag to the relationship engine role name
func (u *User) Role() UserRole {
	if u.IsSuperuser {
		return RoleSuperuser
	}
	return RoleClient
}

// Document projects the user into its search index shape
func (u *User) Document() UserDocument {
	return UserDocument{
		ID:        u.ID,
		Email:     u.Email,
		Username:  u.Username,
		IsActive:  u.IsActive,
		AvatarURL: u.AvatarURL,
	}
}

// NormalizeEmail lowercases and trims an email so uniqueness is
// case-insensitive at the storage layer.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// AdminToken grants short-lived superuser-equivalent session access. It is
// honored only while unexpired AND its owner is currently a superuser; both
// conditions are checked at verification time.
type AdminToken struct {
	bun.BaseModel `bun:"table:admin_tokens,alias:adm"`
	ID            int64      `bun:"id,pk,autoincrement" json:"id,omitempty"`
	Token         string     `bun:"token,notnull,unique" json:"token,omitempty"`
	ExpiresAt     time.Time  `bun:"expires_at,notnull" json:"expires_at,omitempty"`
	UserID        int64      `bun:"user_id,notnull" json:"user_id,omitempty"`
	User          *User      `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// UserCreate is the registration payload. IsSuperuser is accepted so payloads
// round-trip, but registration always stores false.
type UserCreate struct {
	Email       string `json:"email"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	IsSuperuser bool   `json:"is_superuser"`
}

func (p UserCreate) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&p.Username, validation.Required, validation.Length(1, 200)),
		validation.Field(&p.Password, validation.Required, validation.Length(8, 100)),
	)
}

// UserUpdate is a merge-patch payload: nil fields are left untouched.
type UserUpdate struct {
	Email    *string `json:"email,omitempty"`
	Username *string `json:"username,omitempty"`
	Password *string `json:"password,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
}

func (p UserUpdate) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Email, validation.Length(6, 100), is.Email),
		validation.Field(&p.Username, validation.Length(1, 200)),
		validation.Field(&p.Password, validation.Length(8, 100)),
	)
}

// changes flattens the patch into storage columns. The password never lands
// here; callers hash it into password_hash first.
func (p UserUpdate) changes() map[string]any {
	fields := map[string]any{}
	if p.Email != nil {
		fields["email"] = NormalizeEmail(*p.Email)
	}
	if p.Username != nil {
		fields["username"] = *p.Username
	}
	if p.IsActive != nil {
		fields["is_active"] = *p.IsActive
	}
	return fields
}

// UserDocument is the denormalized search index projection; eventually
// consistent with the primary row.
type UserDocument struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	IsActive  bool   `json:"is_active"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// DocumentID is the search engine primary key for the user
func (d UserDocument) DocumentID() string {
	return strconv.FormatInt(d.ID, 10)
}
