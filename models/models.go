package models

// All returns every persisted model, in migration order
func All() []interface{} {
	return []interface{}{
		&Admin{},
		&Customer{},
		&Tailor{},
		&Order{},
		&EscrowHold{},
		&PayoutInstruction{},
		&ContactMessage{},
		&ActivityLog{},
	}
}
