// Package models contains the GORM persistence models backing the counting
// tables. They are kept separate from the domain entities so the domain layer
// stays free of ORM tags; mappers on each model convert in both directions,
// and only the repositories touch these types.
//
// base.go holds the shared embeddings (BaseModel, AggregateModel,
// TenantAggregateModel); counting.go holds the counting context models
// (Inventory, Sector, CountEntry, ProductBalance, AuditEntry).
package models
