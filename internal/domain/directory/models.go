package directory

import "time"

const (
	CardTypeCompany = "company"
)

type Team struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"createdAt"`
	LeadUserID *int64    `json:"leadUserId,omitempty"`
}

// Employee is a user record synced from the HRMS. IsAdded marks employees
// already imported into the operational directory.
type Employee struct {
	ID                 int64      `json:"id"`
	Name               string     `json:"name"`
	Email              string     `json:"email"`
	PhoneNumber        string     `json:"phoneNumber"`
	Team               string     `json:"team"`
	Department         string     `json:"department"`
	Designation        string     `json:"designation"`
	ManagerName        string     `json:"managerName"`
	CompanyJoiningDate *time.Time `json:"companyJoiningDate,omitempty"`
	UserStatus         bool       `json:"userStatus"`
	IsAdded            bool       `json:"isAdded"`
}

type Card struct {
	ID             int64  `json:"id"`
	UserID         int64  `json:"userId"`
	CardHolderName string `json:"cardHolderName"`
	CardNickname   string `json:"cardNickname,omitempty"`
	CardNo         string `json:"cardNo"`
	CardType       string `json:"cardType"`
	ExpiryMM       int    `json:"expiryMm"`
	ExpiryYY       int    `json:"expiryYy"`
}

type CardCategory string

const (
	CardCategoryCompany CardCategory = "company"
	CardCategoryBenefit CardCategory = "benefit"
)

// Category tags a card by its type. An empty type counts as a company card.
func (c Card) Category() CardCategory {
	switch c.CardType {
	case "", CardTypeCompany:
		return CardCategoryCompany
	default:
		return CardCategoryBenefit
	}
}

// MaskedNumber keeps the last four digits of the card number.
func (c Card) MaskedNumber() string {
	if c.CardNo == "" {
		return "---"
	}
	runes := []rune(c.CardNo)
	if len(runes) <= 4 {
		return "***" + c.CardNo
	}
	return "***" + string(runes[len(runes)-4:])
}

type EmployeeFilter struct {
	IsAdded *bool
	Team    string
}

type CardFilter struct {
	UserID int64
}

type CardInput struct {
	UserID         int64
	CardHolderName string
	CardNickname   string
	CardNo         string
	CardType       string
	ExpiryMM       int
	ExpiryYY       int
}

func Bool(v bool) *bool {
	return &v
}
