package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/huangang/taskforge/internal/authz"
	"github.com/huangang/taskforge/internal/config"
	"github.com/huangang/taskforge/internal/models"
	"github.com/huangang/taskforge/internal/utils"
	"gorm.io/gorm"
)

var ErrUsernameTaken = errors.New("username already exists")

type AuthService struct {
	db          *gorm.DB
	ldapService *LDAPService
	jwtConfig   *config.JWTConfig
}

func NewAuthService(db *gorm.DB, jwtCfg *config.JWTConfig, ldapCfg *config.LDAPConfig) *AuthService {
	return &AuthService{
		db:          db,
		ldapService: NewLDAPService(ldapCfg),
		jwtConfig:   jwtCfg,
	}
}

type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=2,max=100"`
	Password string `json:"password" binding:"required"`
	Email    string `json:"email" binding:"omitempty,email"`
	Nickname string `json:"nickname"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	AuthType string `json:"auth_type"` // local, ldap
}

type LoginResult struct {
	AccessToken     string       `json:"access_token"`
	AccessExpireAt  time.Time    `json:"access_expire_at"`
	RefreshToken    string       `json:"refresh_token"`
	RefreshExpireAt time.Time    `json:"refresh_expire_at"`
	User            *models.User `json:"user,omitempty"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Register creates a local account. Usernames are the identity used for
// project ownership and membership, so they are trimmed and must be unique.
func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) (*models.User, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return nil, authz.BadRequest("username is required")
	}
	if err := utils.ValidatePassword(req.Password); err != nil {
		return nil, authz.BadRequest(err.Error())
	}

	db := s.db.WithContext(ctx)
	var count int64
	if err := db.Unscoped().Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrUsernameTaken
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	user := models.User{
		Username: username,
		Password: hash,
		Email:    req.Email,
		Nickname: req.Nickname,
		AuthType: "local",
		IsActive: true,
	}
	if err := db.Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// Login authenticates against the local table or LDAP and issues an access
// and a refresh token.
func (s *AuthService) Login(ctx context.Context, req *LoginRequest, clientIP, userAgent string) (*LoginResult, error) {
	var user *models.User
	var err error

	switch req.AuthType {
	case "", "local":
		user, err = s.localAuth(ctx, req.Username, req.Password)
	case "ldap":
		user, err = s.ldapAuth(ctx, req.Username, req.Password)
	default:
		return nil, authz.BadRequest("invalid auth type")
	}
	if err != nil {
		return nil, err
	}

	result, err := s.issueTokens(ctx, user, clientIP, userAgent)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user.LastLogin = &now
	s.db.WithContext(ctx).Model(user).Update("last_login", now)

	result.User = user
	return result, nil
}

// Refresh exchanges a refresh token for a new pair. The old token is revoked
// and linked to its replacement.
func (s *AuthService) Refresh(ctx context.Context, refreshToken, clientIP, userAgent string) (*LoginResult, error) {
	db := s.db.WithContext(ctx)

	var stored models.RefreshToken
	if err := db.Where("token_hash = ?", hashRefreshToken(refreshToken)).First(&stored).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, authz.Unauthorized("invalid refresh token")
		}
		return nil, err
	}
	if !stored.Active(time.Now()) {
		return nil, authz.Unauthorized("refresh token expired or revoked")
	}

	var user models.User
	if err := db.First(&user, stored.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, authz.Unauthorized("user not found")
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, authz.Unauthorized("user is disabled")
	}

	var result *LoginResult
	err := db.Transaction(func(tx *gorm.DB) error {
		// only one concurrent refresh may consume the token
		res := tx.Model(&models.RefreshToken{}).
			Where("id = ? AND revoked_at IS NULL", stored.ID).
			Update("revoked_at", time.Now())
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return authz.Unauthorized("refresh token expired or revoked")
		}

		issued, newID, err := s.issueTokensTx(tx, &user, clientIP, userAgent)
		if err != nil {
			return err
		}
		result = issued
		return tx.Model(&models.RefreshToken{}).Where("id = ?", stored.ID).Update("replaced_by_token_id", newID).Error
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *AuthService) RevokeRefreshToken(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.db.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("token_hash = ? AND revoked_at IS NULL", hashRefreshToken(refreshToken)).
		Update("revoked_at", time.Now()).Error
}

func (s *AuthService) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, authz.NotFound("user not found")
		}
		return nil, err
	}
	return &user, nil
}

func (s *AuthService) IsLDAPEnabled() bool {
	return s.ldapService.IsEnabled()
}

func (s *AuthService) issueTokens(ctx context.Context, user *models.User, clientIP, userAgent string) (*LoginResult, error) {
	result, _, err := s.issueTokensTx(s.db.WithContext(ctx), user, clientIP, userAgent)
	return result, err
}

func (s *AuthService) issueTokensTx(tx *gorm.DB, user *models.User, clientIP, userAgent string) (*LoginResult, uint, error) {
	accessHours := s.jwtConfig.ExpireHour
	if accessHours <= 0 {
		accessHours = 24
	}
	refreshHours := s.jwtConfig.RefreshExpireHour
	if refreshHours <= 0 {
		refreshHours = 720
	}

	access, err := utils.GenerateToken(user.ID, user.Username, accessHours)
	if err != nil {
		return nil, 0, err
	}
	refresh, refreshHash, err := generateRefreshToken()
	if err != nil {
		return nil, 0, err
	}

	now := time.Now()
	record := models.RefreshToken{
		UserID:      user.ID,
		Username:    user.Username,
		TokenHash:   refreshHash,
		ExpiresAt:   now.Add(time.Duration(refreshHours) * time.Hour),
		CreatedByIP: clientIP,
		UserAgent:   truncate(userAgent, 255),
	}
	if err := tx.Create(&record).Error; err != nil {
		return nil, 0, err
	}

	return &LoginResult{
		AccessToken:     access,
		AccessExpireAt:  now.Add(time.Duration(accessHours) * time.Hour),
		RefreshToken:    refresh,
		RefreshExpireAt: record.ExpiresAt,
	}, record.ID, nil
}

func (s *AuthService) localAuth(ctx context.Context, username, password string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("username = ? AND auth_type = ?", username, "local").First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, authz.Unauthorized("invalid username or password")
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, authz.Unauthorized("user is disabled")
	}
	if !utils.CheckPassword(password, user.Password) {
		return nil, authz.Unauthorized("invalid username or password")
	}
	return &user, nil
}

// ldapAuth provisions a local row on first login so the user can own
// projects and be added to teams.
func (s *AuthService) ldapAuth(ctx context.Context, username, password string) (*models.User, error) {
	ldapUser, err := s.ldapService.Authenticate(username, password)
	if err != nil {
		switch {
		case errors.Is(err, ErrLDAPDisabled):
			return nil, authz.BadRequest("LDAP login is not enabled")
		case errors.Is(err, ErrLDAPInvalidCredentials):
			return nil, authz.Unauthorized("invalid username or password")
		}
		return nil, fmt.Errorf("ldap: %w", err)
	}

	db := s.db.WithContext(ctx)
	var user models.User
	err = db.Where("username = ?", ldapUser.Username).First(&user).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		user = models.User{
			Username: ldapUser.Username,
			Email:    ldapUser.Email,
			Nickname: ldapUser.Nickname,
			AuthType: "ldap",
			IsActive: true,
		}
		if err := db.Create(&user).Error; err != nil {
			return nil, err
		}
		return &user, nil
	case err != nil:
		return nil, err
	}

	if user.AuthType != "ldap" {
		return nil, authz.Unauthorized("invalid username or password")
	}
	if !user.IsActive {
		return nil, authz.Unauthorized("user is disabled")
	}
	db.Model(&user).Updates(map[string]interface{}{"email": ldapUser.Email, "nickname": ldapUser.Nickname})
	return &user, nil
}

func generateRefreshToken() (token string, tokenHash string, err error) {
	randomBytes := make([]byte, 32)
	if _, err = rand.Read(randomBytes); err != nil {
		return "", "", err
	}
	token = hex.EncodeToString(randomBytes)
	return token, hashRefreshToken(token), nil
}

func hashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
