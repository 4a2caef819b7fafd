// Package project maps workspace paths to project identities and labels.
//
// A workspace inside a git repository resolves to the repository root so that
// corrections made from different subdirectories count as one project.
package project
