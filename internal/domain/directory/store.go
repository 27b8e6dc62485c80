package directory

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

const employeeColumns = `
    id,
    COALESCE(name, ''),
    COALESCE(email, ''),
    COALESCE(phone_number, ''),
    COALESCE(team, ''),
    COALESCE(department, ''),
    COALESCE(designation, ''),
    COALESCE(manager_name, ''),
    company_joining_date,
    user_status,
    is_added`

const cardColumns = `
    id, user_id, card_holder_name, COALESCE(card_nickname, ''), card_no,
    COALESCE(card_type, ''), expiry_mm, expiry_yy`

func (s *Store) ListTeams(ctx context.Context) ([]Team, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, name, created_at, lead_user_id
    FROM teams
    ORDER BY id
  `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Team
	for rows.Next() {
		var t Team
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt, &t.LeadUserID); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) ListEmployees(ctx context.Context, filter EmployeeFilter) ([]Employee, error) {
	query := "SELECT " + employeeColumns + " FROM hrms_users"
	var where []string
	var args []any
	if filter.IsAdded != nil {
		args = append(args, *filter.IsAdded)
		where = append(where, "is_added = $"+strconv.Itoa(len(args)))
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		if !filter.Matches(emp) {
			continue
		}
		out = append(out, emp)
	}
	return out, rows.Err()
}

func (s *Store) GetEmployee(ctx context.Context, id int64) (*Employee, error) {
	row := s.DB.QueryRow(ctx, "SELECT "+employeeColumns+" FROM hrms_users WHERE id = $1", id)
	emp, err := scanEmployee(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrEmployeeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &emp, nil
}

func (s *Store) ListCards(ctx context.Context, filter CardFilter) ([]Card, error) {
	rows, err := s.DB.Query(ctx, "SELECT "+cardColumns+" FROM cards WHERE user_id = $1 ORDER BY id", filter.UserID)
	if err != nil {
		return nil, err
	}
	return collectCards(rows)
}

func (s *Store) ListCardsByUsers(ctx context.Context, userIDs []int64) ([]Card, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	rows, err := s.DB.Query(ctx, "SELECT "+cardColumns+" FROM cards WHERE user_id = ANY($1) ORDER BY user_id, id", userIDs)
	if err != nil {
		return nil, err
	}
	return collectCards(rows)
}

// MarkEmployeesAdded flags every id as imported in one statement and reports
// how many rows actually changed state.
func (s *Store) MarkEmployeesAdded(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := s.DB.Exec(ctx, `
    UPDATE hrms_users
    SET is_added = true
    WHERE id = ANY($1) AND is_added = false
  `, ids)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *Store) InsertCard(ctx context.Context, card CardInput) (int64, error) {
	var id int64
	if err := s.DB.QueryRow(ctx, `
    INSERT INTO cards (user_id, card_holder_name, card_nickname, card_no, card_type, expiry_mm, expiry_yy)
    VALUES ($1,$2,$3,$4,$5,$6,$7)
    RETURNING id
  `, card.UserID, card.CardHolderName, nullIfEmpty(card.CardNickname), card.CardNo, card.CardType, card.ExpiryMM, card.ExpiryYY).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func scanEmployee(row pgx.Row) (Employee, error) {
	var emp Employee
	err := row.Scan(
		&emp.ID, &emp.Name, &emp.Email, &emp.PhoneNumber, &emp.Team, &emp.Department,
		&emp.Designation, &emp.ManagerName, &emp.CompanyJoiningDate, &emp.UserStatus, &emp.IsAdded,
	)
	return emp, err
}

func collectCards(rows pgx.Rows) ([]Card, error) {
	defer rows.Close()
	var out []Card
	for rows.Next() {
		var c Card
		if err := rows.Scan(&c.ID, &c.UserID, &c.CardHolderName, &c.CardNickname, &c.CardNo, &c.CardType, &c.ExpiryMM, &c.ExpiryYY); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func nullIfEmpty(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
