package versions

import (
	"log"
	"time"

	"gorm.io/gorm"
)

// Earlier deployments recorded only the lifetime of a repository token at
// exchange time, not its absolute expiry. There is no way to reconstruct the
// expiry for existing rows, so tokens that had a lifetime are marked expired
// and users reauthorize on next use.
func Migration_0_token_expiry(txn *gorm.DB) error {
	log.Println("migrating table 'repository_tokens'")

	type RepositoryToken struct {
		ExpiresAt *time.Time
	}

	if !txn.Migrator().HasColumn(&RepositoryToken{}, "expires_at") {
		if err := txn.Migrator().AddColumn(&RepositoryToken{}, "ExpiresAt"); err != nil {
			return err
		}
	}

	err := txn.Model(&RepositoryToken{}).
		Where("expires_at IS NULL AND expires_in > 0").
		Update("expires_at", time.Now()).Error
	if err != nil {
		return err
	}

	log.Println("table 'repository_tokens' migration complete")

	return nil
}
