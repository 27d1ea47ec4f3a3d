package models

// User is the directory projection the messaging core reads. Registration and
// credential storage live in the auth service; this side only resolves
// identities and push tokens.
type User struct {
	ID             string
	Login          string
	Username       string
	PhotoURL       string
	NotificationID string // push-delivery token; empty when no device registered
}

func (u *User) ToMessageUser() *MessageUser {
	return &MessageUser{
		ID:       u.ID,
		Username: u.Username,
		PhotoURL: u.PhotoURL,
	}
}
