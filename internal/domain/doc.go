// Package domain holds the shared value types of the governed group:
// account names, assets, governance records, and the error taxonomy.
//
// Ownership boundary:
// - identity and symbol validation
//
// - record shapes persisted by internal/storage
//
// - error kinds mapped to transport codes at the server boundary
//
// Domain carries no storage or transport concerns.
package domain
