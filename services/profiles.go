package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"creaverse/db"
	"creaverse/models"

	"golang.org/x/crypto/argon2"
	"gorm.io/gorm"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,30}$`)

type RegisterInput struct {
	Username    string `json:"username" binding:"required"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"display_name"`
}

type UpdateProfileInput struct {
	DisplayName *string `json:"display_name"`
	AvatarURL   *string `json:"avatar_url"`
	Bio         *string `json:"bio"`
}

type ProfileService struct {
	tokens *TokenService
}

func NewProfileService(tokens *TokenService) *ProfileService {
	return &ProfileService{tokens: tokens}
}

func (s *ProfileService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	if !usernamePattern.MatchString(in.Username) {
		return nil, fmt.Errorf("%w: username must be 3-30 letters, digits or underscores", ErrInvalidInput)
	}
	if len(in.Password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidInput)
	}

	var alreadyExists int64
	err := db.GetReadOnlyDB(ctx).Model(&models.User{}).
		Where("lower(username) = lower(?)", in.Username).
		Count(&alreadyExists).Error
	if err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if alreadyExists > 0 {
		return nil, fmt.Errorf("username %q: %w", in.Username, ErrAlreadyExists)
	}

	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	displayName := strings.TrimSpace(in.DisplayName)
	if displayName == "" {
		displayName = in.Username
	}
	user := &models.User{
		Username:    in.Username,
		DisplayName: displayName,
		Password:    hash,
		VotingPower: 1,
	}
	if err = db.GetWriteDB(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("username %q: %w", in.Username, ErrAlreadyExists)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	slog.InfoContext(ctx, "user registered", "user_id", user.ID, "username", user.Username)
	return user, nil
}

type LoginResult struct {
	Token     string       `json:"token"`
	ExpiresAt int64        `json:"expires_at"`
	User      *models.User `json:"user"`
}

func (s *ProfileService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	var user models.User
	err := db.GetReadOnlyDB(ctx).Where("lower(username) = lower(?)", strings.TrimSpace(username)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !verifyPassword(user.Password, password) {
		return nil, ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &LoginResult{Token: token, ExpiresAt: expiresAt.Unix(), User: &user}, nil
}

func (s *ProfileService) GetByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	err := db.GetReadOnlyDB(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *ProfileService) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := db.GetReadOnlyDB(ctx).Where("lower(username) = lower(?)", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Summaries loads partial profiles keyed by id. Unknown ids are absent from
// the result.
func (s *ProfileService) Summaries(ctx context.Context, ids []int64) (map[int64]models.ProfileSummary, error) {
	return loadSummaries(ctx, ids)
}

func loadSummaries(ctx context.Context, ids []int64) (map[int64]models.ProfileSummary, error) {
	result := make(map[int64]models.ProfileSummary, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var users []models.User
	err := db.GetReadOnlyDB(ctx).
		Select("id", "username", "display_name", "avatar_url", "verified").
		Where("id IN ?", uniqueIDs(ids)).
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("load profiles: %w", err)
	}
	for _, u := range users {
		result[u.ID] = u.Summary()
	}
	return result, nil
}

func (s *ProfileService) UpdateProfile(ctx context.Context, id int64, in UpdateProfileInput) (*models.User, error) {
	updates := map[string]interface{}{}
	if in.DisplayName != nil {
		name := strings.TrimSpace(*in.DisplayName)
		if name == "" {
			return nil, fmt.Errorf("%w: display name is empty", ErrInvalidInput)
		}
		updates["display_name"] = name
	}
	if in.AvatarURL != nil {
		updates["avatar_url"] = strings.TrimSpace(*in.AvatarURL)
	}
	if in.Bio != nil {
		updates["bio"] = *in.Bio
	}

	if len(updates) > 0 {
		res := db.GetWriteDB(ctx).Model(&models.User{}).Where("id = ?", id).Updates(updates)
		if res.Error != nil {
			return nil, fmt.Errorf("update profile: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil, ErrNotFound
		}
	}
	return s.GetByID(ctx, id)
}

// Search finds profiles whose username or display name starts with the query.
func (s *ProfileService) Search(ctx context.Context, query string, limit int) ([]models.ProfileSummary, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.ProfileSummary{}, nil
	}
	like := strings.ToLower(query) + "%"

	var users []models.User
	err := db.GetReadOnlyDB(ctx).
		Where("lower(username) LIKE ? OR lower(display_name) LIKE ?", like, like).
		Order("username").
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	result := make([]models.ProfileSummary, 0, len(users))
	for _, u := range users {
		result = append(result, u.Summary())
	}
	return result, nil
}

// hashPassword returns "salt$hash" with both parts hex encoded.
func hashPassword(password string) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	hash := argon2.IDKey([]byte(password), salt, 1, 64*1024, 4, 32)
	return hex.EncodeToString(salt) + "$" + hex.EncodeToString(hash), nil
}

func verifyPassword(stored, password string) bool {
	parts := strings.Split(stored, "$")
	if len(parts) != 2 {
		return false
	}
	salt, err := hex.DecodeString(parts[0])
	if err != nil {
		return false
	}
	expected, err := hex.DecodeString(parts[1])
	if err != nil {
		return false
	}
	hash := argon2.IDKey([]byte(password), salt, 1, 64*1024, 4, 32)
	return subtle.ConstantTimeCompare(hash, expected) == 1
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
