package domain

import "strings"

// User is the typed form of a Users record.
type User struct {
	ID          string
	Username    string
	Name        string
	Email       string
	Role        string
	Permissions []string
	Status      string
	Extra       Record
}

// ParsePermissions materializes the permissions field into trimmed tokens.
// It accepts the comma-separated at-rest form as well as already split slices.
func ParsePermissions(v any) []string {
	var raw []string
	switch t := v.(type) {
	case nil:
		return []string{}
	case []string:
		raw = t
	case []any:
		for _, item := range t {
			raw = append(raw, AsString(item))
		}
	default:
		raw = strings.Split(AsString(v), ",")
	}
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// JoinPermissions renders permission tokens in the at-rest comma form.
func JoinPermissions(perms []string) string {
	return strings.Join(ParsePermissions(perms), ",")
}

// HasPermission reports whether the user holds the token.
func (u User) HasPermission(p string) bool {
	for _, have := range u.Permissions {
		if have == p {
			return true
		}
	}
	return false
}

var userFields = map[string]bool{
	FieldID: true, "username": true, "name": true, "email": true,
	"role": true, FieldPermissions: true, FieldStatus: true,
}

// UserFromRecord converts a Users record to its typed form.
func UserFromRecord(r Record) User {
	u := User{
		ID:          r.ID(),
		Username:    r.String("username"),
		Name:        r.String("name"),
		Email:       r.String("email"),
		Role:        r.String("role"),
		Permissions: ParsePermissions(r[FieldPermissions]),
		Status:      r.String(FieldStatus),
		Extra:       Record{},
	}
	for k, v := range r {
		if !userFields[k] {
			u.Extra[k] = v
		}
	}
	return u
}

func (User) Collection() string { return Users }

// ToRecord returns the in-memory record with permissions as a token slice.
func (u User) ToRecord() Record {
	r := u.Extra.Clone()
	if r == nil {
		r = Record{}
	}
	r[FieldID] = u.ID
	r["username"] = u.Username
	r["name"] = u.Name
	r["email"] = u.Email
	r["role"] = u.Role
	r[FieldPermissions] = append([]string{}, u.Permissions...)
	r[FieldStatus] = u.Status
	return r
}
