package employee

import "errors"

var (
	ErrInvalidName        = errors.New("employee: invalid name")
	ErrInvalidEmail       = errors.New("employee: invalid email")
	ErrInvalidTel         = errors.New("employee: invalid tel")
	ErrInvalidPage        = errors.New("employee: invalid page")
	ErrInvalidPageSize    = errors.New("employee: invalid page size")
	ErrEmailAlreadyExists = errors.New("employee: email already exists")
)
