package service

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/CT14090/meal-plan-verification/internal/dto"
	"github.com/CT14090/meal-plan-verification/internal/model"
	"github.com/CT14090/meal-plan-verification/internal/repository"
)

// AuthConfig is the slice of configuration token issuing needs.
type AuthConfig struct {
	JWTSecret       string
	ExpirationHours int
}

type AuthService interface {
	Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error)
	CreateCashier(ctx context.Context, req dto.CreateCashierRequest) (*dto.CashierResponse, error)
	ListCashiers(ctx context.Context) ([]dto.CashierResponse, error)
}

type authService struct {
	repo repository.CashierRepository
	cfg  AuthConfig
	now  func() time.Time
}

func NewAuthService(repo repository.CashierRepository, cfg AuthConfig) AuthService {
	return &authService{repo: repo, cfg: cfg, now: time.Now}
}

func (s *authService) Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error) {
	c, err := s.repo.FindByUsername(ctx, req.Username)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, storeErr("auth: find cashier", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := s.generateToken(c, time.Duration(s.cfg.ExpirationHours)*time.Hour)
	if err != nil {
		return nil, err
	}
	log.Info().Str("username", c.Username).Str("role", c.Role).Msg("auth: login")

	return &dto.LoginResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   s.cfg.ExpirationHours * 3600,
		Cashier:     toCashierResponse(c),
	}, nil
}

func (s *authService) CreateCashier(ctx context.Context, req dto.CreateCashierRequest) (*dto.CashierResponse, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), 12)
	if err != nil {
		return nil, err
	}
	c := &model.Cashier{
		ID:           uuid.New(),
		Username:     strings.TrimSpace(req.Username),
		DisplayName:  req.DisplayName,
		PasswordHash: string(hash),
		Role:         req.Role,
		StationID:    req.StationID,
		Active:       true,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		if isDuplicate(err) {
			return nil, ErrInvalidInput
		}
		return nil, storeErr("auth: create cashier", err)
	}
	resp := toCashierResponse(c)
	return &resp, nil
}

func (s *authService) ListCashiers(ctx context.Context) ([]dto.CashierResponse, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, storeErr("auth: list cashiers", err)
	}
	out := make([]dto.CashierResponse, len(rows))
	for i := range rows {
		out[i] = toCashierResponse(&rows[i])
	}
	return out, nil
}

func (s *authService) generateToken(c *model.Cashier, duration time.Duration) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"cashier_id": c.ID.String(),
		"username":   c.Username,
		"role":       c.Role,
		"station_id": c.StationID,
		"exp":        now.Add(duration).Unix(),
		"iat":        now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}

func toCashierResponse(c *model.Cashier) dto.CashierResponse {
	return dto.CashierResponse{
		ID:          c.ID.String(),
		Username:    c.Username,
		DisplayName: c.DisplayName,
		Role:        c.Role,
		StationID:   c.StationID,
	}
}
