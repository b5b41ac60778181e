package domain

import "time"

type User struct {
	ID           int64     `json:"id"`
	Firstname    string    `json:"firstname"`
	Middlename   string    `json:"middlename,omitempty"`
	Lastname     string    `json:"lastname"`
	Username     string    `json:"username,omitempty"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	RegisteredOn time.Time `json:"registered_on"`
	Verified     bool      `json:"verified"`
}

// FullName arma el nombre visible del usuario.
func (u User) FullName() string {
	name := u.Firstname
	if u.Middlename != "" {
		name += " " + u.Middlename
	}
	if u.Lastname != "" {
		name += " " + u.Lastname
	}
	return name
}
