// Package domain contains the core business entities and domain errors
// for repository analysis and cross-repository retrieval. It has no
// dependencies on infrastructure packages.
package domain
