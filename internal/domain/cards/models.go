package cards

type BenefitType string

const (
	BenefitWellness            BenefitType = "wellness"
	BenefitTransportation      BenefitType = "transportation"
	BenefitMealVoucher         BenefitType = "meal_voucher"
	BenefitGymMembership       BenefitType = "gym_membership"
	BenefitLearningDevelopment BenefitType = "learning_development"
	BenefitBirthdayGift        BenefitType = "birthday_gift"
	BenefitPerformanceBonus    BenefitType = "performance_bonus"
	BenefitOther               BenefitType = "other"
)

var BenefitTypes = []BenefitType{
	BenefitWellness,
	BenefitTransportation,
	BenefitMealVoucher,
	BenefitGymMembership,
	BenefitLearningDevelopment,
	BenefitBirthdayGift,
	BenefitPerformanceBonus,
	BenefitOther,
}

// Benefit cards are virtual and share one fixed expiry.
const (
	benefitExpiryMM = 12
	benefitExpiryYY = 25
)

type CompanyCardRequest struct {
	UserID         int64  `json:"userId" validate:"required,gt=0"`
	CardHolderName string `json:"cardHolderName" validate:"required,max=120"`
	CardNickname   string `json:"cardNickname" validate:"max=60"`
	CardNo         string `json:"cardNo" validate:"required,number,min=4,max=19"`
	ExpiryMM       int    `json:"expiryMm" validate:"required,min=1,max=12"`
	ExpiryYY       int    `json:"expiryYy" validate:"required,min=1,max=99"`
}

type BenefitCardRequest struct {
	UserID       int64       `json:"userId" validate:"required,gt=0"`
	CardNickname string      `json:"cardNickname" validate:"required,max=60"`
	BenefitType  BenefitType `json:"benefitType" validate:"required,oneof=wellness transportation meal_voucher gym_membership learning_development birthday_gift performance_bonus other"`
}

type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}
