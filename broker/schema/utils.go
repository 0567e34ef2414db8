package schema

import (
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrTokenNotFound      = errors.New("repository token not found")
	ErrDbAccessFailed     = errors.New("db access failed")
)

func GetUser(userId uuid.UUID, db *gorm.DB) (User, error) {
	var user User

	result := db.First(&user, "id = ?", userId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return user, ErrUserNotFound
		}
		slog.Error("sql error in get user", "user_id", userId, "error", result.Error)
		return user, ErrDbAccessFailed
	}

	return user, nil
}

func GetUserByOrcid(orcid string, db *gorm.DB) (User, error) {
	var user User

	result := db.First(&user, "orcid = ?", orcid)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return user, ErrUserNotFound
		}
		slog.Error("sql error in get user by orcid", "orcid", orcid, "error", result.Error)
		return user, ErrDbAccessFailed
	}

	return user, nil
}

func GetSubmission(userId uuid.UUID, repositoryType, identifier string, db *gorm.DB) (Submission, error) {
	var submission Submission

	result := db.Preload("Authors", func(db *gorm.DB) *gorm.DB {
		return db.Order("submission_authors.position")
	}).First(&submission, "user_id = ? and repository_type = ? and identifier = ?", userId, repositoryType, identifier)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return submission, ErrSubmissionNotFound
		}
		slog.Error("sql error in get submission", "user_id", userId, "repository", repositoryType, "identifier", identifier, "error", result.Error)
		return submission, ErrDbAccessFailed
	}

	return submission, nil
}
