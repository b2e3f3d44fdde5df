package connections

import (
	"strings"
	"time"

	"clevertap-sync/internal/clevertap"
)

// DeletedLabelPrefix marks a soft-deleted connection's label.
const DeletedLabelPrefix = "[Deleted] "

// Connection holds the credentials and endpoint for one external account.
// Deleted connections keep their Name so it is never reissued.
type Connection struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Label     string    `json:"label" db:"label"`
	AccountID string    `json:"account_id" db:"account_id"`
	Passcode  string    `json:"-" db:"passcode"`
	Region    string    `json:"region" db:"region"`
	URL       string    `json:"url" db:"url"`
	Deleted   bool      `json:"deleted" db:"deleted"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Live reports whether the connection is usable and listable.
func (c Connection) Live() bool {
	return !c.Deleted && !strings.HasPrefix(c.Label, DeletedLabelPrefix)
}

func (c Connection) Credentials() clevertap.Credentials {
	return clevertap.Credentials{AccountID: c.AccountID, Passcode: c.Passcode}
}

// tombstone returns c with its secrets and routing cleared.
func (c Connection) tombstone() Connection {
	if !strings.HasPrefix(c.Label, DeletedLabelPrefix) {
		c.Label = DeletedLabelPrefix + c.Label
	}
	c.AccountID = ""
	c.Passcode = ""
	c.Region = ""
	c.URL = ""
	c.Deleted = true
	return c
}

type CreateRequest struct {
	Label     string `json:"label"`
	AccountID string `json:"account_id"`
	Passcode  string `json:"passcode"`
	Region    string `json:"region"`
}
