package cards

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"

	"github.com/go-playground/validator/v10"

	"cardadmin/internal/domain/directory"
)

type Invalidator interface {
	Invalidate(ctx context.Context) error
}

type Service struct {
	store       directory.StoreAPI
	validate    *validator.Validate
	Invalidator Invalidator
	// lastFour supplies the visible digits of generated benefit card numbers.
	lastFour func() int
}

func NewService(store directory.StoreAPI) *Service {
	return &Service{
		store:    store,
		validate: newValidator(),
		lastFour: func() int { return rand.IntN(10000) },
	}
}

func (s *Service) CreateCompanyCard(ctx context.Context, req CompanyCardRequest) (*directory.Card, error) {
	req.CardHolderName = strings.TrimSpace(req.CardHolderName)
	req.CardNickname = strings.TrimSpace(req.CardNickname)
	req.CardNo = strings.ReplaceAll(strings.TrimSpace(req.CardNo), " ", "")
	if err := check(s.validate, req); err != nil {
		return nil, err
	}
	if _, err := s.importedEmployee(ctx, req.UserID); err != nil {
		return nil, err
	}

	return s.insert(ctx, directory.CardInput{
		UserID:         req.UserID,
		CardHolderName: req.CardHolderName,
		CardNickname:   req.CardNickname,
		CardNo:         req.CardNo,
		CardType:       directory.CardTypeCompany,
		ExpiryMM:       req.ExpiryMM,
		ExpiryYY:       req.ExpiryYY,
	})
}

// CreateBenefitCard issues a virtual card in the employee's name with a
// generated, already-masked number.
func (s *Service) CreateBenefitCard(ctx context.Context, req BenefitCardRequest) (*directory.Card, error) {
	req.CardNickname = strings.TrimSpace(req.CardNickname)
	req.BenefitType = BenefitType(strings.ToLower(strings.TrimSpace(string(req.BenefitType))))
	if err := check(s.validate, req); err != nil {
		return nil, err
	}
	emp, err := s.importedEmployee(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	return s.insert(ctx, directory.CardInput{
		UserID:         req.UserID,
		CardHolderName: emp.Name,
		CardNickname:   req.CardNickname,
		CardNo:         fmt.Sprintf("****-****-****-%04d", s.lastFour()%10000),
		CardType:       string(req.BenefitType),
		ExpiryMM:       benefitExpiryMM,
		ExpiryYY:       benefitExpiryYY,
	})
}

func (s *Service) importedEmployee(ctx context.Context, userID int64) (*directory.Employee, error) {
	emp, err := s.store.GetEmployee(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !emp.IsAdded {
		return nil, ErrEmployeeNotImported
	}
	return emp, nil
}

func (s *Service) insert(ctx context.Context, input directory.CardInput) (*directory.Card, error) {
	id, err := s.store.InsertCard(ctx, input)
	if err != nil {
		return nil, err
	}
	if s.Invalidator != nil {
		if err := s.Invalidator.Invalidate(ctx); err != nil {
			slog.Warn("read model invalidation failed", "cardId", id, "err", err)
		}
	}
	slog.Info("card created", "cardId", id, "userId", input.UserID, "cardType", input.CardType)
	return &directory.Card{
		ID:             id,
		UserID:         input.UserID,
		CardHolderName: input.CardHolderName,
		CardNickname:   input.CardNickname,
		CardNo:         input.CardNo,
		CardType:       input.CardType,
		ExpiryMM:       input.ExpiryMM,
		ExpiryYY:       input.ExpiryYY,
	}, nil
}
