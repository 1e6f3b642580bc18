// Package entity defines the ARCHOS resource types and their per-resource
// policies: default fields on create, validation, sort order, and derived
// accessors such as heartbeat staleness or knowledge search.
//
// Every type maps to one database table; db column names and json field
// names are kept identical so that feed post-images, API payloads, and the
// in-memory table all share one encoding. Policies here are pure functions —
// all I/O lives in internal/store and pkg/resource.
package entity
