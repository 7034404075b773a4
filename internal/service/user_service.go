package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/techtwins/user-api/internal/apperr"
	"github.com/techtwins/user-api/internal/models"
)

const (
	defaultPage    = 1
	defaultPerPage = 10
)

// UserStore defines the persistence operations UserService relies on.
type UserStore interface {
	Create(user *models.User) error
	GetByID(id int64) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	List(page, perPage int) ([]models.User, int, error)
	Update(user *models.User) error
	Delete(id int64) error
	Ping() error
}

// UserService owns the business rules of the user resource: uniqueness
// checks, timestamp management and partial-update application.
type UserService struct {
	store UserStore
}

func NewUserService(store UserStore) *UserService {
	return &UserService{store: store}
}

func (s *UserService) ListUsers(page, perPage int) ([]models.User, *models.Pagination, error) {
	if page < 1 {
		page = defaultPage
	}
	if perPage < 1 {
		perPage = defaultPerPage
	}

	users, total, err := s.store.List(page, perPage)
	if err != nil {
		return nil, nil, err
	}

	pagination := &models.Pagination{
		Page:    page,
		Pages:   (total + perPage - 1) / perPage,
		PerPage: perPage,
		Total:   total,
	}
	return users, pagination, nil
}

func (s *UserService) GetUser(id int64) (*models.User, error) {
	return s.store.GetByID(id)
}

func (s *UserService) CreateUser(req models.CreateUserRequest) (*models.User, error) {
	if _, err := s.store.GetByEmail(req.Email); err == nil {
		return nil, apperr.ErrConflict
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	user := &models.User{
		Name:      req.Name,
		Email:     req.Email,
		Age:       req.Age,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(user); err != nil {
		return nil, err
	}
	return user, nil
}

// UpdateUser applies only the fields present in the request. Absent fields
// keep their stored values.
func (s *UserService) UpdateUser(id int64, req models.UpdateUserRequest) (*models.User, error) {
	user, err := s.store.GetByID(id)
	if err != nil {
		return nil, err
	}

	if req.Email != nil && *req.Email != user.Email {
		if _, err := s.store.GetByEmail(*req.Email); err == nil {
			return nil, apperr.ErrConflict
		} else if !errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
	}

	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.Email != nil {
		user.Email = *req.Email
	}
	if req.Age != nil {
		user.Age = req.Age
	}
	user.UpdatedAt = time.Now().UTC()

	if err := s.store.Update(user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) DeleteUser(id int64) error {
	return s.store.Delete(id)
}

// HealthCheck reports store reachability as a status string. A down store is
// data, not an error.
func (s *UserService) HealthCheck() string {
	if err := s.store.Ping(); err != nil {
		return fmt.Sprintf("error: %v", err)
	}
	return "connected"
}
