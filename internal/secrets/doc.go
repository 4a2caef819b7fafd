// Package secrets redacts credentials from conversation excerpts before they
// are persisted as evidence or shown in review artifacts.
package secrets
