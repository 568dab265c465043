package services

import (
	"context"
	"errors"

	db "github.com/markdave123-py/Extracta/internal/core/database"
	"github.com/markdave123-py/Extracta/internal/models"
)

type UserService struct {
	db db.DbClient
}

func NewUserService(database db.DbClient) *UserService {
	return &UserService{db: database}
}

func (s *UserService) Create(ctx context.Context, u *models.User) error {
	if u == nil || u.Email == "" || u.PasswordHash == "" {
		return errors.New("invalid user payload")
	}
	return s.db.CreateUser(ctx, u)
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.db.GetUserByEmail(ctx, email)
}
