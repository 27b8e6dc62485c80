package views

import (
	"fmt"

	"cardadmin/internal/domain/directory"
)

func teamMembers(snap *Snapshot) ([]TeamMembers, []directory.Employee) {
	groups := directory.GroupByTeam(snap.Employees)
	known := make(map[string]bool, len(snap.Teams))
	teams := make([]TeamMembers, 0, len(snap.Teams))
	for _, team := range snap.Teams {
		known[directory.NormalizeTeamName(team.Name)] = true
		members := directory.MembersOf(team, groups)
		if members == nil {
			members = []directory.Employee{}
		}
		teams = append(teams, TeamMembers{Team: team, Members: members})
	}

	unassigned := []directory.Employee{}
	for _, emp := range snap.Employees {
		if key, ok := directory.ResolveTeamKey(emp); !ok || !known[key] {
			unassigned = append(unassigned, emp)
		}
	}
	return teams, unassigned
}

// BuildDirectory lists imported employees and groups them by team. Employees
// whose team matches no configured team land in Unassigned.
func BuildDirectory(snap *Snapshot) Directory {
	teams, unassigned := teamMembers(snap)
	employees := snap.Employees
	if employees == nil {
		employees = []directory.Employee{}
	}
	return Directory{
		Employees:  employees,
		Teams:      teams,
		Unassigned: unassigned,
		Stats:      snap.Stats,
	}
}

func BuildTeamBrowser(snap *Snapshot) TeamBrowser {
	teams, _ := teamMembers(snap)
	return TeamBrowser{Teams: teams}
}

// BuildCardInventory flattens teams, members and cards into rows and splits
// them by card category.
func BuildCardInventory(snap *Snapshot) CardInventory {
	teams, _ := teamMembers(snap)
	inv := CardInventory{
		Company:      []CardRow{},
		Benefit:      []CardRow{},
		WithoutCards: []EmployeeRow{},
	}
	seen := make(map[int64]bool)
	for _, team := range teams {
		for _, emp := range team.Members {
			if seen[emp.ID] {
				continue
			}
			seen[emp.ID] = true

			cards := snap.Cards[emp.ID]
			if len(cards) == 0 {
				inv.WithoutCards = append(inv.WithoutCards, EmployeeRow{
					EmployeeID:   emp.ID,
					EmployeeName: emp.Name,
					Team:         team.Name,
					Email:        emp.Email,
				})
				continue
			}
			for _, card := range cards {
				row := cardRow(team.Name, emp, card)
				switch row.Category {
				case directory.CardCategoryCompany:
					inv.Company = append(inv.Company, row)
				default:
					inv.Benefit = append(inv.Benefit, row)
				}
			}
		}
	}
	inv.Summary = InventorySummary{
		Company:      len(inv.Company),
		Benefit:      len(inv.Benefit),
		WithoutCards: len(inv.WithoutCards),
	}
	return inv
}

func cardRow(team string, emp directory.Employee, card directory.Card) CardRow {
	category := card.Category()
	wallet := WalletPrimary
	if category == directory.CardCategoryBenefit {
		wallet = WalletMonthlyLimit
	}
	cardType := card.CardType
	if cardType == "" {
		cardType = directory.CardTypeCompany
	}
	return CardRow{
		CardID:       card.ID,
		EmployeeID:   emp.ID,
		EmployeeName: emp.Name,
		Team:         team,
		HolderName:   card.CardHolderName,
		Nickname:     card.CardNickname,
		MaskedNumber: card.MaskedNumber(),
		CardType:     cardType,
		Category:     category,
		Expiry:       fmt.Sprintf("%02d/%02d", card.ExpiryMM, card.ExpiryYY%100),
		Wallet:       wallet,
	}
}
