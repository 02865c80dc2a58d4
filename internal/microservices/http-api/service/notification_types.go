package service

// NotificationType is the closed set of events that produce admin notifications.
type NotificationType string

const (
	TypeResidentPending       NotificationType = "resident_pending"
	TypeResidentApproved      NotificationType = "resident_approved"
	TypeResidentRejected      NotificationType = "resident_rejected"
	TypeHouseCreated          NotificationType = "house_created"
	TypeHouseUpdated          NotificationType = "house_updated"
	TypeHouseDeleted          NotificationType = "house_deleted"
	TypeHouseStatusChanged    NotificationType = "house_status_changed"
	TypeVisitorPendingTooLong NotificationType = "visitor_pending_too_long"
	TypeVisitorApproved       NotificationType = "visitor_approved"
	TypeVisitorRejected       NotificationType = "visitor_rejected"
)

type Category string

const (
	CategoryUserApproval      Category = "user_approval"
	CategoryHouseManagement   Category = "house_management"
	CategoryVisitorManagement Category = "visitor_management"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

type typeDefaults struct {
	category Category
	priority Priority
}

// catalog must list every NotificationType; it is the only place a type is mapped to its defaults.
var catalog = map[NotificationType]typeDefaults{
	TypeResidentPending:       {CategoryUserApproval, PriorityHigh},
	TypeResidentApproved:      {CategoryUserApproval, PriorityLow},
	TypeResidentRejected:      {CategoryUserApproval, PriorityLow},
	TypeHouseCreated:          {CategoryHouseManagement, PriorityMedium},
	TypeHouseUpdated:          {CategoryHouseManagement, PriorityMedium},
	TypeHouseDeleted:          {CategoryHouseManagement, PriorityHigh},
	TypeHouseStatusChanged:    {CategoryHouseManagement, PriorityMedium},
	TypeVisitorPendingTooLong: {CategoryVisitorManagement, PriorityUrgent},
	TypeVisitorApproved:       {CategoryVisitorManagement, PriorityLow},
	TypeVisitorRejected:       {CategoryVisitorManagement, PriorityLow},
}

// ParseNotificationType reports whether s names a known notification type.
func ParseNotificationType(s string) (NotificationType, bool) {
	t := NotificationType(s)
	_, ok := catalog[t]
	return t, ok
}

func ParseCategory(s string) (Category, bool) {
	switch c := Category(s); c {
	case CategoryUserApproval, CategoryHouseManagement, CategoryVisitorManagement:
		return c, true
	}
	return "", false
}

func ParsePriority(s string) (Priority, bool) {
	switch p := Priority(s); p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return p, true
	}
	return "", false
}

// DefaultCategory returns the catalog category of a known type.
func (t NotificationType) DefaultCategory() Category {
	return catalog[t].category
}

func (t NotificationType) DefaultPriority() Priority {
	return catalog[t].priority
}
