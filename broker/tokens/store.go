package tokens

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"submithub/broker/schema"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrNotAuthorized indicates the user never authorized (or has revoked)
// access to the requested repository. This is a client-actionable condition,
// distinct from a generic lookup failure: the caller must (re)authorize.
var ErrNotAuthorized = errors.New("not authorized for repository")

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Update carries the fields of a fresh token exchange. An empty RefreshToken
// means the provider did not reissue one; the previously stored refresh token
// is preserved in that case, all other fields are overwritten.
type Update struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
	ExpiresAt    *time.Time
}

func (s *Store) Get(userId uuid.UUID, repositoryType string) (schema.RepositoryToken, error) {
	var token schema.RepositoryToken

	result := s.db.First(&token, "user_id = ? and repository_type = ?", userId, repositoryType)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return token, fmt.Errorf("%w '%v'", ErrNotAuthorized, repositoryType)
		}
		slog.Error("sql error in get repository token", "user_id", userId, "repository", repositoryType, "error", result.Error)
		return token, schema.ErrDbAccessFailed
	}

	return token, nil
}

func (s *Store) Upsert(userId uuid.UUID, repositoryType string, update Update) (schema.RepositoryToken, error) {
	var token schema.RepositoryToken

	err := s.db.Transaction(func(txn *gorm.DB) error {
		result := txn.Limit(1).Find(&token, "user_id = ? and repository_type = ?", userId, repositoryType)
		if result.Error != nil {
			slog.Error("sql error checking for existing repository token", "user_id", userId, "repository", repositoryType, "error", result.Error)
			return schema.ErrDbAccessFailed
		}

		if result.RowsAffected == 0 {
			token = schema.RepositoryToken{
				Id:             uuid.New(),
				UserId:         userId,
				RepositoryType: repositoryType,
			}
		}

		token.AccessToken = update.AccessToken
		if update.RefreshToken != "" {
			token.RefreshToken = update.RefreshToken
		}
		token.ExpiresIn = update.ExpiresIn
		token.ExpiresAt = update.ExpiresAt

		result = txn.Save(&token)
		if result.Error != nil {
			slog.Error("sql error upserting repository token", "user_id", userId, "repository", repositoryType, "error", result.Error)
			return schema.ErrDbAccessFailed
		}

		return nil
	})
	if err != nil {
		return schema.RepositoryToken{}, err
	}

	return token, nil
}

// Delete is idempotent, deleting an absent token is a no-op.
func (s *Store) Delete(userId uuid.UUID, repositoryType string) error {
	result := s.db.Where("user_id = ? and repository_type = ?", userId, repositoryType).Delete(&schema.RepositoryToken{})
	if result.Error != nil {
		slog.Error("sql error deleting repository token", "user_id", userId, "repository", repositoryType, "error", result.Error)
		return schema.ErrDbAccessFailed
	}
	return nil
}

// IsExpired reports whether the token expires within the given buffer. A
// token with no expiry on record never expires.
func IsExpired(token schema.RepositoryToken, now time.Time, buffer time.Duration) bool {
	if token.ExpiresAt == nil {
		return false
	}
	return !now.Add(buffer).Before(*token.ExpiresAt)
}
