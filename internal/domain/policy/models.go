package policy

import "time"

// ExpenseRule is one approval tier. Amounts are kept as entered; an empty
// amount means the bound is not set yet.
type ExpenseRule struct {
	ID        string `json:"id"`
	Level     int    `json:"level"`
	Approver  string `json:"approver"`
	MinAmount string `json:"minAmount"`
	MaxAmount string `json:"maxAmount"`
}

type TeamPolicy struct {
	TeamName    string        `json:"teamName"`
	Rules       []ExpenseRule `json:"rules"`
	Suggestions []string      `json:"suggestions"`
}

type ExpensePolicy struct {
	ID        string       `json:"id"`
	Teams     []TeamPolicy `json:"teams"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

type RulePatch struct {
	Approver  *string `json:"approver"`
	MinAmount *string `json:"minAmount"`
	MaxAmount *string `json:"maxAmount"`
}

type ApproverType string

const (
	ApproverAuto ApproverType = "auto-approve"
	ApproverUser ApproverType = "user"
	ApproverRole ApproverType = "role"
)

func (t ApproverType) Valid() bool {
	switch t {
	case ApproverAuto, ApproverUser, ApproverRole:
		return true
	}
	return false
}

type ApprovalLevel struct {
	ID          string       `json:"id"`
	Level       int          `json:"level"`
	Type        ApproverType `json:"type"`
	Value       string       `json:"value"`
	Description string       `json:"description"`
}

// Unlimited is the MaxLimit value for a flow with no upper bound.
const Unlimited = "Infinity"

type CardApprovalFlow struct {
	ID        string          `json:"id"`
	MinLimit  string          `json:"minLimit"`
	MaxLimit  string          `json:"maxLimit"`
	Levels    []ApprovalLevel `json:"levels"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

type LevelPatch struct {
	Type        *ApproverType `json:"type"`
	Value       *string       `json:"value"`
	Description *string       `json:"description"`
}

type BirthdayBenefit struct {
	Enabled    bool            `json:"enabled"`
	Amount     string          `json:"amount"`
	ValidFor   string          `json:"validFor"`
	Categories map[string]bool `json:"categories"`
}

type AnniversaryBenefit struct {
	Enabled   bool   `json:"enabled"`
	Amount    string `json:"amount"`
	MinYears  string `json:"minYears"`
	MaxAmount string `json:"maxAmount"`
}

type HomeOfficeBenefit struct {
	Enabled    bool            `json:"enabled"`
	Budget     string          `json:"budget"`
	Trigger    string          `json:"trigger"`
	Categories map[string]bool `json:"categories"`
}

type BenefitsAutomation struct {
	Birthday    BirthdayBenefit    `json:"birthday"`
	Anniversary AnniversaryBenefit `json:"anniversary"`
	HomeOffice  HomeOfficeBenefit  `json:"homeOffice"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

// Submission is returned once a draft has been logged and discarded.
type Submission struct {
	DraftID     string    `json:"draftId"`
	Kind        string    `json:"kind"`
	SubmittedAt time.Time `json:"submittedAt"`
	Config      any       `json:"config"`
}
