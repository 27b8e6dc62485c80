package views

import (
	"time"

	"cardadmin/internal/domain/directory"
)

// Snapshot is the shared read model behind every dashboard view.
type Snapshot struct {
	Teams []directory.Team `json:"teams"`
	// Employees holds imported employees only.
	Employees []directory.Employee       `json:"employees"`
	Cards     map[int64][]directory.Card `json:"cards"`
	Stats     HRMSStats                  `json:"stats"`
	LoadedAt  time.Time                  `json:"loadedAt"`
}

// HRMSStats counts every synced HRMS user, imported or not.
type HRMSStats struct {
	Employees int `json:"employees"`
	Teams     int `json:"teams"`
	Active    int `json:"active"`
	Imported  int `json:"imported"`
}

type TeamMembers struct {
	directory.Team
	Members []directory.Employee `json:"members"`
}

type Directory struct {
	Employees  []directory.Employee `json:"employees"`
	Teams      []TeamMembers        `json:"teams"`
	Unassigned []directory.Employee `json:"unassigned"`
	Stats      HRMSStats            `json:"stats"`
}

type TeamBrowser struct {
	Teams []TeamMembers `json:"teams"`
}

type CardRow struct {
	CardID       int64                  `json:"cardId"`
	EmployeeID   int64                  `json:"employeeId"`
	EmployeeName string                 `json:"employeeName"`
	Team         string                 `json:"team"`
	HolderName   string                 `json:"holderName"`
	Nickname     string                 `json:"nickname,omitempty"`
	MaskedNumber string                 `json:"maskedNumber"`
	CardType     string                 `json:"cardType"`
	Category     directory.CardCategory `json:"category"`
	Expiry       string                 `json:"expiry"`
	Wallet       string                 `json:"wallet"`
}

// EmployeeRow stands in for an imported team member with no card on file.
type EmployeeRow struct {
	EmployeeID   int64  `json:"employeeId"`
	EmployeeName string `json:"employeeName"`
	Team         string `json:"team"`
	Email        string `json:"email"`
}

type InventorySummary struct {
	Company      int `json:"company"`
	Benefit      int `json:"benefit"`
	WithoutCards int `json:"withoutCards"`
}

type CardInventory struct {
	Company      []CardRow        `json:"company"`
	Benefit      []CardRow        `json:"benefit"`
	WithoutCards []EmployeeRow    `json:"withoutCards"`
	Summary      InventorySummary `json:"summary"`
}

const (
	WalletPrimary      = "Primary Wallet"
	WalletMonthlyLimit = "Monthly Limit"
)
