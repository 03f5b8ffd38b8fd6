package domain

import "github.com/google/uuid"

// NewID generates an opaque unique identifier for wallets, journal entries,
// and transfer ids. Callers never parse or compare these beyond equality.
func NewID() string { return uuid.NewString() }

// NewTransferID synthesizes the identifier shared by a transfer's two
// journal entries and used as the aggregate id of both transfer events.
func NewTransferID() string { return uuid.NewString() }
