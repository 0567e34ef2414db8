package schema

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	// Orcid is the stable subject id assigned by the identity provider.
	// It is set on first login and never changes afterwards.
	Orcid string `gorm:"unique;size:50;not null"`

	Name  string `gorm:"size:150"`
	Email string `gorm:"size:254"`

	// Primary credentials from the identity provider, overwritten on every login.
	AccessToken  string
	RefreshToken string

	IsAdmin bool `gorm:"not null;default:false"`

	Tokens      []RepositoryToken `gorm:"constraint:OnDelete:CASCADE"`
	Submissions []Submission      `gorm:"constraint:OnDelete:CASCADE"`
}

type RepositoryToken struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	UserId         uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_user_repository"`
	RepositoryType string    `gorm:"size:50;not null;uniqueIndex:idx_user_repository"`

	AccessToken  string `gorm:"not null"`
	RefreshToken string
	ExpiresIn    int64
	ExpiresAt    *time.Time

	User *User `gorm:"constraint:OnDelete:CASCADE"`
}

type Submission struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	UserId         uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_user_repo_identifier"`
	RepositoryType string    `gorm:"size:50;not null;uniqueIndex:idx_user_repo_identifier"`
	Identifier     string    `gorm:"size:255;not null;uniqueIndex:idx_user_repo_identifier"`

	Title       string             `gorm:"size:500;not null"`
	Authors     []SubmissionAuthor `gorm:"constraint:OnDelete:CASCADE"`
	SubmittedAt time.Time
	Url         string `gorm:"size:500"`

	// Full repository record as returned by the adapter, serialized as json.
	MetadataJson string

	User *User
}

type SubmissionAuthor struct {
	SubmissionId uuid.UUID `gorm:"type:uuid;primaryKey"`
	Position     int       `gorm:"primaryKey"`
	Name         string    `gorm:"size:250;not null"`
}

func (s *Submission) AuthorNames() []string {
	names := make([]string, 0, len(s.Authors))
	for _, author := range s.Authors {
		names = append(names, author.Name)
	}
	return names
}

func (s *Submission) SetAuthors(names []string) {
	s.Authors = make([]SubmissionAuthor, 0, len(names))
	for i, name := range names {
		s.Authors = append(s.Authors, SubmissionAuthor{SubmissionId: s.Id, Position: i, Name: name})
	}
}

func AllModels() []interface{} {
	return []interface{}{
		&User{}, &RepositoryToken{}, &Submission{}, &SubmissionAuthor{},
	}
}
