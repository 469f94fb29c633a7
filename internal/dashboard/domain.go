package dashboard

import "time"

// Stats is the aggregate shown on the dashboard.
type Stats struct {
	TotalAssets       int64 `json:"totalAssets"`
	AssetsInUse       int64 `json:"assetsInUse"`
	OpenTickets       int64 `json:"openTickets"`
	UrgentTickets     int64 `json:"urgentTickets"`
	TicketsCreatedDay int64 `json:"ticketsCreatedToday"`
	ActiveUsers       int64 `json:"activeUsers"`
	Technicians       int64 `json:"technicians"`
}

// Snapshot is a computed Stats value and the time it was captured.
type Snapshot struct {
	Stats      Stats     `json:"stats"`
	CapturedAt time.Time `json:"capturedAt"`
}
