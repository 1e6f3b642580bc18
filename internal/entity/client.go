package entity

import (
	"errors"
	"fmt"
	"time"

	"github.com/archos-hq/archos/pkg/resource"
)

// TableClients is the CRM's backing table.
const TableClients = "clients"

// ClientStatus is a CRM pipeline stage.
type ClientStatus string

const (
	ClientLead     ClientStatus = "lead"
	ClientProspect ClientStatus = "prospect"
	ClientActive   ClientStatus = "active"
	ClientChurned  ClientStatus = "churned"
)

// Client is one CRM contact.
type Client struct {
	ID        string       `db:"id" json:"id"`
	Name      string       `db:"name" json:"name"`
	Email     *string      `db:"email" json:"email"`
	Phone     *string      `db:"phone" json:"phone"`
	Status    ClientStatus `db:"status" json:"status"`
	Industry  *string      `db:"industry" json:"industry"`
	Notes     *string      `db:"notes" json:"notes"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt time.Time    `db:"updated_at" json:"updated_at"`
}

func (c Client) EntityID() string { return c.ID }

// ClientDefaults starts new contacts at the top of the pipeline.
func ClientDefaults(c Client) Client {
	if c.Status == "" {
		c.Status = ClientLead
	}
	return c
}

// ValidateClient rejects unnamed contacts and unknown pipeline stages.
func ValidateClient(c Client) error {
	var errs []error
	if c.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	switch c.Status {
	case ClientLead, ClientProspect, ClientActive, ClientChurned:
	default:
		errs = append(errs, fmt.Errorf("unknown status %q", c.Status))
	}
	if err := errors.Join(errs...); err != nil {
		return &resource.ValidationError{Table: TableClients, Reason: "client", Err: err}
	}
	return nil
}

// ClientLess sorts newest first.
func ClientLess(a, b Client) bool { return a.CreatedAt.After(b.CreatedAt) }
