package entity

import (
	"errors"
	"time"

	"github.com/archos-hq/archos/pkg/resource"
)

// TableSecrets holds API keys and tokens, values encrypted at rest.
const TableSecrets = "bot_secrets"

// Secret is one stored credential. EncryptedValue is an opaque ciphertext
// produced by internal/secretbox; the plaintext never reaches the database.
type Secret struct {
	ID             string    `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	EncryptedValue string    `db:"encrypted_value" json:"encrypted_value"`
	Provider       *string   `db:"provider" json:"provider"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

func (s Secret) EntityID() string { return s.ID }

// ValidateSecret rejects secrets without a name or ciphertext.
func ValidateSecret(s Secret) error {
	var errs []error
	if s.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if s.EncryptedValue == "" {
		errs = append(errs, errors.New("encrypted_value is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return &resource.ValidationError{Table: TableSecrets, Reason: "secret", Err: err}
	}
	return nil
}

// SecretLess sorts by name, the settings page's list order.
func SecretLess(a, b Secret) bool { return a.Name < b.Name }
