package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"asyncops/internal/model"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var bcryptCost = 12

// Claims carries the user id in "sub" and the role at issue time.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenService(secret string, ttl time.Duration) *TokenService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (t *TokenService) Issue(u *model.User) (string, error) {
	now := t.now()
	claims := Claims{
		Role: u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(u.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Parse validates signature and expiry and returns the user id from "sub".
func (t *TokenService) Parse(raw string) (int, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(raw, &claims, func(tok *jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(t.now))
	if err != nil || !token.Valid {
		return 0, unauthorized("Could not validate credentials")
	}
	id, err := strconv.Atoi(claims.Subject)
	if err != nil {
		return 0, unauthorized("Could not validate credentials")
	}
	return id, nil
}

type AuthService struct {
	db     *gorm.DB
	tokens *TokenService
}

func NewAuthService(db *gorm.DB, tokens *TokenService) *AuthService {
	return &AuthService{db: db, tokens: tokens}
}

func HashPassword(password string) (string, error) {
	if password == "" {
		return "", invalid("Password cannot be empty")
	}
	b := []byte(password)
	if len(b) > 72 {
		b = b[:72]
	}
	hash, err := bcrypt.GenerateFromPassword(b, bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func checkPassword(hash, password string) bool {
	if hash == "" || password == "" {
		return false
	}
	b := []byte(password)
	if len(b) > 72 {
		b = b[:72]
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), b) == nil
}

func (s *AuthService) Register(ctx context.Context, req model.RegisterRequest) (*model.User, error) {
	return s.createUser(ctx, req.Email, req.Password, req.FullName, model.RoleMember)
}

// CreateAdmin is used by the operator CLI to bootstrap the first admin.
func (s *AuthService) CreateAdmin(ctx context.Context, email, password, fullName string) (*model.User, error) {
	return s.createUser(ctx, email, password, fullName, model.RoleAdmin)
}

func (s *AuthService) createUser(ctx context.Context, email, password, fullName, role string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	u := &model.User{Email: email, PasswordHash: hash, FullName: fullName, Role: role, IsActive: true}
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, conflict("Email already registered")
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*model.User, string, error) {
	var u model.User
	err := s.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", unauthorized("Incorrect email or password")
	}
	if err != nil {
		return nil, "", fmt.Errorf("query user: %w", err)
	}
	if !checkPassword(u.PasswordHash, password) {
		return nil, "", unauthorized("Incorrect email or password")
	}
	if !u.IsActive {
		return nil, "", forbidden("User account is inactive")
	}
	token, err := s.tokens.Issue(&u)
	if err != nil {
		return nil, "", fmt.Errorf("issue token: %w", err)
	}
	return &u, token, nil
}

// Authenticate resolves a bearer token to a live, active user.
func (s *AuthService) Authenticate(ctx context.Context, raw string) (*model.User, error) {
	id, err := s.tokens.Parse(raw)
	if err != nil {
		return nil, err
	}
	var u model.User
	err = s.db.WithContext(ctx).First(&u, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, unauthorized("Could not validate credentials")
	}
	if err != nil {
		return nil, fmt.Errorf("load user %d: %w", id, err)
	}
	if !u.IsActive {
		return nil, forbidden("User account is inactive")
	}
	return &u, nil
}

func (s *AuthService) ChangePassword(ctx context.Context, u *model.User, current, next string) error {
	if !checkPassword(u.PasswordHash, current) {
		return invalid("Current password is incorrect")
	}
	hash, err := HashPassword(next)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Model(u).Update("password_hash", hash).Error; err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}
