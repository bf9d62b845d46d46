// Package domain holds the platform's core types: users and roles, campaigns
// and their lifecycle statuses, creative pieces, per-piece reviews with the
// two-coordinate verdict model, and the append-only event records.
//
// Types here carry no behavior beyond pure derivations (piece finality,
// status checks). Business rules live in the service layer.
package domain
