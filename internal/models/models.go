package models

// User is an account with access to the API itself. Passwords are stored
// bcrypt-hashed and never serialized.
type User struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"      json:"id"`
	Name         string `gorm:"size:100;not null"             json:"name"`
	Email        string `gorm:"size:100;uniqueIndex;not null" json:"email"`
	Role         string `gorm:"size:100;not null"             json:"role"`
	PasswordHash string `gorm:"not null"                      json:"-"`
	IsActive     bool   `gorm:"default:true"                  json:"is_active"`
}

// Contact is a CRM record. It carries no credentials: access to the CRM
// store is controlled entirely by the API-user guard.
type Contact struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"      json:"id"`
	Name      string `gorm:"size:100;not null"             json:"name"`
	FirstName string `gorm:"size:100;not null"             json:"first_name"`
	Email     string `gorm:"size:100;uniqueIndex;not null" json:"email"`
	Telephone string `gorm:"size:10"                       json:"telephone"`
}
