package types

import (
	"encoding/json"
	"maps"
)

// =============================================================================
// USER & AUTHENTICATION TYPES
// =============================================================================
// These types are shared by the client, session and cli packages

// AdminRoleID is the role_id the backend assigns to administrators
const AdminRoleID = 1

// User is the account record returned by the backend and mirrored into local storage.
// Fields without a typed counterpart are kept in Extra and written back unchanged, so the stored copy
// matches the server record.
type User struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	RoleID      int    `json:"role_id"`
	Avatar      string `json:"avatar,omitempty"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`

	// Extra holds the members of the record that the typed fields do not emit (unknown keys,
	// and optional keys the server sent as null or empty)
	Extra map[string]json.RawMessage `json:"-"`
}

// userRecord has the fields of User without its JSON methods
type userRecord User

func (u User) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(userRecord(u))
	if err != nil || len(u.Extra) == 0 {
		return data, err
	}

	var members map[string]json.RawMessage
	if err := json.Unmarshal(data, &members); err != nil {
		return nil, err
	}
	for k, v := range u.Extra {
		if _, typed := members[k]; !typed {
			members[k] = v
		}
	}
	return json.Marshal(members)
}

func (u *User) UnmarshalJSON(data []byte) error {
	var rec userRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	var members map[string]json.RawMessage
	if err := json.Unmarshal(data, &members); err != nil {
		return err
	}

	typed, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	var emitted map[string]json.RawMessage
	if err := json.Unmarshal(typed, &emitted); err != nil {
		return err
	}
	for k := range emitted {
		delete(members, k)
	}

	*u = User(rec)
	u.Extra = nil
	if len(members) > 0 {
		u.Extra = members
	}
	return nil
}

// IsAdmin reports whether u holds the administrator role. A nil user is never an admin.
func (u *User) IsAdmin() bool {
	return u != nil && u.RoleID == AdminRoleID
}

// Clone returns a copy that callers may keep without sharing state with the session store
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.Extra = maps.Clone(u.Extra)
	return &c
}

// Credentials is the request body of the register and login endpoints
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResponse is the body returned by the auth and profile endpoints
type AuthResponse struct {
	User    *User  `json:"user"`
	Message string `json:"message,omitempty"`
}

// =============================================================================
// API RESPONSE TYPES
// =============================================================================

// ErrorResponse represents an error response from the API
type ErrorResponse struct {
	ErrorCode string `json:"error_code,omitempty"`
	Message   string `json:"message"`
}
