package auth

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	// identityCacheSize bounds the token-validation cache
	identityCacheSize = 1024
	// identityCacheTTL keeps validations fresh enough that revocation and
	// deactivation take effect quickly
	identityCacheTTL = time.Minute
)

// Service implements user accounts and token issuance on top of the database
type Service struct {
	db        *sql.DB
	generator *TokenGenerator
	cache     *lru.LRU[string, *Identity]
	tokenTTL  time.Duration
	builder   sq.StatementBuilderType
}

// NewService creates a new auth service. tokenTTL of zero issues tokens that
// never expire.
func NewService(db *sql.DB, tokenTTL time.Duration) *Service {
	return &Service{
		db:        db,
		generator: NewTokenGenerator(),
		cache:     lru.NewLRU[string, *Identity](identityCacheSize, nil, identityCacheTTL),
		tokenTTL:  tokenTTL,
		builder:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// NormalizeEmail lowercases the domain part of an email address. The local
// part is preserved as given.
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	return email[:at+1] + strings.ToLower(email[at+1:])
}

func validateEmail(email string) string {
	if email == "" {
		return "email is required"
	}
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return "enter a valid email address"
	}
	return ""
}

// CreateUser registers a new account. The email is normalized before the
// uniqueness check; the password is stored as a bcrypt hash.
func (s *Service) CreateUser(ctx context.Context, email, password, name string) (*User, error) {
	fields := ValidationError{}
	if msg := validateEmail(email); msg != "" {
		fields["email"] = msg
	}
	if len(password) < MinPasswordLength {
		fields["password"] = fmt.Sprintf("password must be at least %d characters", MinPasswordLength)
	}
	if len(fields) > 0 {
		return nil, fields
	}

	email = NormalizeEmail(email)

	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check email uniqueness: %w", err)
	}
	if exists {
		return nil, ErrDuplicateEmail
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	user := &User{
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO users (email, password_hash, name, is_active, is_staff, is_superuser, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, user.Email, user.PasswordHash, user.Name, user.IsActive, user.IsStaff, user.IsSuperuser, now, now).Scan(&user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// CreateSuperuser registers a staff account with superuser rights. Used by
// operational tooling; not exposed over HTTP.
func (s *Service) CreateSuperuser(ctx context.Context, email, password string) (*User, error) {
	user, err := s.CreateUser(ctx, email, password, "")
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `UPDATE users SET is_staff = $1, is_superuser = $2 WHERE id = $3`, true, true, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to promote superuser: %w", err)
	}
	user.IsStaff = true
	user.IsSuperuser = true
	return user, nil
}

// Authenticate verifies credentials and issues a new token. The plaintext
// token is returned once and never stored.
func (s *Service) Authenticate(ctx context.Context, email, password string) (string, error) {
	email = NormalizeEmail(email)

	var (
		userID   int64
		hash     string
		isActive bool
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, password_hash, is_active FROM users WHERE email = $1
	`, email).Scan(&userID, &hash, &isActive)
	if err == sql.ErrNoRows {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up user: %w", err)
	}
	if !isActive || !CheckPassword(hash, password) {
		return "", ErrInvalidCredentials
	}

	token, tokenHash, prefix, err := s.generator.GenerateToken()
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	var expiresAt interface{}
	if s.tokenTTL != 0 {
		expiresAt = now.Add(s.tokenTTL)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tokens (user_id, token_hash, token_prefix, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`, userID, tokenHash, prefix, now, expiresAt)
	if err != nil {
		return "", fmt.Errorf("failed to store token: %w", err)
	}

	return token, nil
}

// ValidateToken resolves a bearer token into the identity it was issued to.
// Results are cached briefly to keep hot paths off the database.
func (s *Service) ValidateToken(ctx context.Context, token string) (*Identity, error) {
	if err := s.generator.ValidateTokenFormat(token); err != nil {
		return nil, ErrInvalidToken
	}

	tokenHash := s.generator.HashToken(token)
	if identity, ok := s.cache.Get(tokenHash); ok {
		return identity, nil
	}

	var (
		identity  Identity
		isActive  bool
		expiresAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT u.id, u.email, u.name, u.is_active, t.expires_at
		FROM tokens t
		JOIN users u ON u.id = t.user_id
		WHERE t.token_hash = $1
	`, tokenHash).Scan(&identity.UserID, &identity.Email, &identity.Name, &isActive, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up token: %w", err)
	}
	if !isActive {
		return nil, ErrInvalidToken
	}
	if expiresAt.Valid && expiresAt.Time.Before(time.Now().UTC()) {
		return nil, ErrInvalidToken
	}

	// Best effort; a failed touch must not reject the request
	_, _ = s.db.ExecContext(ctx, `UPDATE tokens SET last_used_at = $1 WHERE token_hash = $2`, time.Now().UTC(), tokenHash)

	s.cache.Add(tokenHash, &identity)
	return &identity, nil
}

// GetUser loads a user by id
func (s *Service) GetUser(ctx context.Context, userID int64) (*User, error) {
	user := &User{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, name, is_active, is_staff, is_superuser, created_at, updated_at
		FROM users WHERE id = $1
	`, userID).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.Name,
		&user.IsActive, &user.IsStaff, &user.IsSuperuser, &user.CreatedAt, &user.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// ProfileUpdate carries the fields a user may change on their own account.
// Nil fields are left untouched.
type ProfileUpdate struct {
	Name     *string
	Password *string
}

// UpdateProfile applies a partial update to the caller's account. A supplied
// password is re-hashed before storage.
func (s *Service) UpdateProfile(ctx context.Context, userID int64, update ProfileUpdate) (*User, error) {
	q := s.builder.Update("users").Set("updated_at", time.Now().UTC())

	if update.Name != nil {
		q = q.Set("name", *update.Name)
	}
	if update.Password != nil {
		if len(*update.Password) < MinPasswordLength {
			return nil, ValidationError{"password": fmt.Sprintf("password must be at least %d characters", MinPasswordLength)}
		}
		hash, err := HashPassword(*update.Password)
		if err != nil {
			return nil, err
		}
		q = q.Set("password_hash", hash)
	}

	query, args, err := q.Where(sq.Eq{"id": userID}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build update query: %w", err)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return nil, ErrNotFound
	}

	// Cached identities may carry a stale name
	s.cache.Purge()

	return s.GetUser(ctx, userID)
}

// PurgeExpiredTokens deletes tokens past their expiry and returns the count
func (s *Service) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM tokens WHERE expires_at IS NOT NULL AND expires_at < $1
	`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired tokens: %w", err)
	}
	return result.RowsAffected()
}

// Stats reports account and token counts for the business gauges
func (s *Service) Stats(ctx context.Context) (users int64, activeTokens int64, err error) {
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&users); err != nil {
		return 0, 0, fmt.Errorf("failed to count users: %w", err)
	}
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM tokens WHERE expires_at IS NULL OR expires_at >= $1
	`, time.Now().UTC()).Scan(&activeTokens)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count tokens: %w", err)
	}
	return users, activeTokens, nil
}
