package models

import "time"

// ContactStatus is the handling state of a contact form message.
type ContactStatus string

const (
	ContactStatusNew     ContactStatus = "new"
	ContactStatusRead    ContactStatus = "read"
	ContactStatusReplied ContactStatus = "replied"
	ContactStatusClosed  ContactStatus = "closed"
)

var contactRank = map[ContactStatus]int{
	ContactStatusNew:     0,
	ContactStatusRead:    1,
	ContactStatusReplied: 2,
	ContactStatusClosed:  3,
}

// Valid reports whether s is a known status.
func (s ContactStatus) Valid() bool {
	_, ok := contactRank[s]
	return ok
}

// CanMoveTo reports whether next does not go backwards. Reopening a closed
// message is a separate, explicit action.
func (s ContactStatus) CanMoveTo(next ContactStatus) bool {
	from, ok := contactRank[s]
	if !ok {
		return false
	}
	to, ok := contactRank[next]
	return ok && to >= from && s != ContactStatusClosed
}

// ContactMessage is a message submitted through the public contact form
type ContactMessage struct {
	ID               uint          `gorm:"primaryKey" json:"id"`
	Name             string        `gorm:"not null" json:"name"`
	Email            string        `gorm:"not null;index" json:"email"`
	Subject          string        `gorm:"not null" json:"subject"`
	Message          string        `gorm:"type:text;not null" json:"message"`
	Status           ContactStatus `gorm:"type:varchar(20);not null;default:'new';index" json:"status"`
	AdminReply       *string       `gorm:"type:text" json:"admin_reply"`
	RepliedByAdminID *uint         `json:"replied_by_admin_id"`
	RepliedAt        *time.Time    `json:"replied_at"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// TableName specifies the table name for the ContactMessage model
func (ContactMessage) TableName() string {
	return "contact_messages"
}
