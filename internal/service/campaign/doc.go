// Package campaign implements the campaign workflow engine.
//
// The service layer owns the role-gated status state machine, the visibility
// filter, the per-piece review sub-machine and the append-only event logs. It
// depends on repository interfaces defined in this package and should never
// import from the HTTP layer.
//
// Repository implementations live in repository/postgres/.
package campaign
