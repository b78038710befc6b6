// Package core defines the shared language of the LeapORM system.
//
// This package contains:
//   - Entity metadata (EntityType, Property, Relation)
//   - Materialized entities with their relation cache
//   - Raw rows as returned by drivers
//   - Semantic value casting
//   - The append-only error sequence used by bulk mutations
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
