// Package models defines the core domain models for the reconciliation engine.
//
// # Model Overview
//
//   - Transaction: one mobile-money payment candidate in the ledger
//   - ParseFailure: one SMS that could not be turned into a Transaction
//   - AllocationAuditEntry: append-only record of allocations and reversals
//   - DuplicateGroup: a read-side cluster of transactions sharing a match key
//   - SuggestedMatch: advisory member suggestion for an unallocated transaction
//   - Member, Group: the institution's member directory (read inputs only)
//   - StaffUser: a staff account that performs allocations
//   - Scope: the institution visibility of the acting staff user
//
// # Design Principles
//
//  1. Amounts are integer minor units (no floats in money paths)
//  2. Nullable text columns map to empty strings; storage converts to SQL NULL
//  3. Transactions are never deleted, only status-transitioned
//  4. Relationships use ID strings, not pointers, to avoid circular references
package models
