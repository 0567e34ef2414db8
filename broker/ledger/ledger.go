package ledger

import (
	"log/slog"

	"submithub/broker/schema"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Ledger stores the canonical submissions for each user. A submission is
// keyed by (user, repository type, identifier); writes are replace-not-merge,
// callers must supply the full canonical record.
type Ledger struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// CreateOrReplace deletes any existing submission under the same key
// (cascading its author rows) and inserts the new record. The delete+insert
// pair commits atomically, so readers never observe the key absent partway
// through a replace.
func (l *Ledger) CreateOrReplace(userId uuid.UUID, submission schema.Submission) (schema.Submission, error) {
	if submission.Id == uuid.Nil {
		submission.Id = uuid.New()
	}
	submission.UserId = userId
	for i := range submission.Authors {
		submission.Authors[i].SubmissionId = submission.Id
	}

	err := l.db.Transaction(func(txn *gorm.DB) error {
		if err := deleteSubmission(txn, userId, submission.RepositoryType, submission.Identifier); err != nil {
			return err
		}

		result := txn.Create(&submission)
		if result.Error != nil {
			slog.Error("sql error creating submission", "user_id", userId, "repository", submission.RepositoryType, "identifier", submission.Identifier, "error", result.Error)
			return schema.ErrDbAccessFailed
		}

		return nil
	})
	if err != nil {
		return schema.Submission{}, err
	}

	return submission, nil
}

func deleteSubmission(txn *gorm.DB, userId uuid.UUID, repositoryType, identifier string) error {
	var existing []schema.Submission
	result := txn.Find(&existing, "user_id = ? and repository_type = ? and identifier = ?", userId, repositoryType, identifier)
	if result.Error != nil {
		slog.Error("sql error looking up submission for delete", "user_id", userId, "repository", repositoryType, "identifier", identifier, "error", result.Error)
		return schema.ErrDbAccessFailed
	}

	for _, submission := range existing {
		result := txn.Where("submission_id = ?", submission.Id).Delete(&schema.SubmissionAuthor{})
		if result.Error != nil {
			slog.Error("sql error deleting submission authors", "submission_id", submission.Id, "error", result.Error)
			return schema.ErrDbAccessFailed
		}
		result = txn.Delete(&schema.Submission{Id: submission.Id})
		if result.Error != nil {
			slog.Error("sql error deleting submission", "submission_id", submission.Id, "error", result.Error)
			return schema.ErrDbAccessFailed
		}
	}

	return nil
}

// Delete is idempotent, deleting an absent submission is a no-op.
func (l *Ledger) Delete(userId uuid.UUID, repositoryType, identifier string) error {
	return l.db.Transaction(func(txn *gorm.DB) error {
		return deleteSubmission(txn, userId, repositoryType, identifier)
	})
}

func (l *Ledger) Get(userId uuid.UUID, repositoryType, identifier string) (schema.Submission, error) {
	return schema.GetSubmission(userId, repositoryType, identifier, l.db)
}

func (l *Ledger) List(userId uuid.UUID) ([]schema.Submission, error) {
	var submissions []schema.Submission
	result := l.db.Preload("Authors", func(db *gorm.DB) *gorm.DB {
		return db.Order("submission_authors.position")
	}).Find(&submissions, "user_id = ?", userId)
	if result.Error != nil {
		slog.Error("sql error listing submissions", "user_id", userId, "error", result.Error)
		return nil, schema.ErrDbAccessFailed
	}
	return submissions, nil
}

// ListAll returns every submission in the ledger, used by the discovery
// reconciliation job.
func (l *Ledger) ListAll() ([]schema.Submission, error) {
	var submissions []schema.Submission
	result := l.db.Find(&submissions)
	if result.Error != nil {
		slog.Error("sql error listing all submissions", "error", result.Error)
		return nil, schema.ErrDbAccessFailed
	}
	return submissions, nil
}

// Owner reports which user, if any, holds a submission under the given
// repository and identifier.
func (l *Ledger) Owner(repositoryType, identifier string) (uuid.UUID, bool, error) {
	var submission schema.Submission
	result := l.db.Limit(1).Find(&submission, "repository_type = ? and identifier = ?", repositoryType, identifier)
	if result.Error != nil {
		slog.Error("sql error looking up submission owner", "repository", repositoryType, "identifier", identifier, "error", result.Error)
		return uuid.Nil, false, schema.ErrDbAccessFailed
	}
	if result.RowsAffected == 0 {
		return uuid.Nil, false, nil
	}
	return submission.UserId, true, nil
}

// IdentifierExists reports whether any user holds a submission with the
// given external identifier.
func (l *Ledger) IdentifierExists(identifier string) (bool, error) {
	var count int64
	result := l.db.Model(&schema.Submission{}).Where("identifier = ?", identifier).Count(&count)
	if result.Error != nil {
		slog.Error("sql error checking submission identifier", "identifier", identifier, "error", result.Error)
		return false, schema.ErrDbAccessFailed
	}
	return count > 0, nil
}

// Transfer reassigns every submission owned by fromUser to toUser in a
// single transaction. Transferring from a user with no submissions is a
// no-op.
func (l *Ledger) Transfer(fromUser, toUser uuid.UUID) error {
	return l.db.Transaction(func(txn *gorm.DB) error {
		result := txn.Model(&schema.Submission{}).
			Where("user_id = ?", fromUser).
			Update("user_id", toUser)
		if result.Error != nil {
			slog.Error("sql error transferring submissions", "from_user", fromUser, "to_user", toUser, "error", result.Error)
			return schema.ErrDbAccessFailed
		}
		slog.Info("transferred submissions", "from_user", fromUser, "to_user", toUser, "count", result.RowsAffected)
		return nil
	})
}

type Report struct {
	CountByRepository map[string]int64 `json:"count_by_repository"`
	Total             int64            `json:"total"`
}

func (l *Ledger) Report() (Report, error) {
	type row struct {
		RepositoryType string
		Count          int64
	}

	var rows []row
	result := l.db.Model(&schema.Submission{}).
		Select("repository_type, count(*) as count").
		Group("repository_type").
		Find(&rows)
	if result.Error != nil {
		slog.Error("sql error building submission report", "error", result.Error)
		return Report{}, schema.ErrDbAccessFailed
	}

	report := Report{CountByRepository: make(map[string]int64, len(rows))}
	for _, r := range rows {
		report.CountByRepository[r.RepositoryType] = r.Count
		report.Total += r.Count
	}
	return report, nil
}
