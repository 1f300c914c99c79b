package models

// Badge is the display metadata attached to an enum value.
type Badge struct {
	Label string `json:"label"`
	Tone  string `json:"tone"`
}

var orderStatusBadges = map[OrderStatus]Badge{
	OrderStatusPending:    {Label: "Pending", Tone: "warning"},
	OrderStatusConfirmed:  {Label: "Confirmed", Tone: "info"},
	OrderStatusAccepted:   {Label: "Accepted", Tone: "info"},
	OrderStatusInProgress: {Label: "In Progress", Tone: "primary"},
	OrderStatusReady:      {Label: "Ready", Tone: "primary"},
	OrderStatusCompleted:  {Label: "Completed", Tone: "success"},
	OrderStatusDelivered:  {Label: "Delivered", Tone: "success"},
	OrderStatusCancelled:  {Label: "Cancelled", Tone: "danger"},
}

var roleLabels = map[Role]string{
	RoleSuperAdmin: "Super Admin",
	RoleAdmin:      "Admin",
	RoleModerator:  "Moderator",
	RoleTailor:     "Tailor",
	RoleCustomer:   "Customer",
}

// Badge returns the display badge for the status.
func (s OrderStatus) Badge() Badge {
	if b, ok := orderStatusBadges[s]; ok {
		return b
	}
	return Badge{Label: string(s), Tone: "secondary"}
}

// Label returns the display name of the role.
func (r Role) Label() string {
	if l, ok := roleLabels[r]; ok {
		return l
	}
	return string(r)
}
