package domain

// User is a forum account. Passwords are stored and compared in plaintext;
// the credentials file is the durability mirror, not a security boundary.
type User struct {
	Name     string
	Password string
	Online   bool
}

func (u *User) PasswordOK(password string) bool {
	return u.Password == password
}
