package directory

import "context"

// StoreAPI is the backend the workflow and the read views run against.
type StoreAPI interface {
	ListTeams(ctx context.Context) ([]Team, error)
	ListEmployees(ctx context.Context, filter EmployeeFilter) ([]Employee, error)
	GetEmployee(ctx context.Context, id int64) (*Employee, error)
	ListCards(ctx context.Context, filter CardFilter) ([]Card, error)
	ListCardsByUsers(ctx context.Context, userIDs []int64) ([]Card, error)
	MarkEmployeesAdded(ctx context.Context, ids []int64) (int64, error)
	InsertCard(ctx context.Context, card CardInput) (int64, error)
}
