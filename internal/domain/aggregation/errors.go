package aggregation

import "errors"

var (
	ErrNoTeams     = errors.New("no teams configured")
	ErrNoEmployees = errors.New("no employees found")
	ErrBackendRead = errors.New("backend read failed")
)
