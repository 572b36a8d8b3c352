// Package services holds the ledger's business rules. Every operation takes
// the acting principal explicitly.
package services

import (
	"time"

	"coparent/backend/events"
	"coparent/backend/storage"
)

var (
	// Now is the clock used for timestamps and "today".
	Now = time.Now

	// Attachments stores uploaded document files.
	Attachments storage.Store

	// Events receives ledger changes after they commit. Nil disables
	// publishing.
	Events events.Publisher = events.LogPublisher{}
)
