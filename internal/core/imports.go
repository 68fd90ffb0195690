package core

import (
	"errors"
	"fmt"
	"strings"
)

const (
	PolicySkip    DuplicatePolicy = "skip"
	PolicyReplace DuplicatePolicy = "replace"
	PolicyAllow   DuplicatePolicy = "allow"

	ModeCheck  ImportMode = "check"
	ModeCommit ImportMode = "commit"
)

// MaxImportSamples caps the error and duplicate sample lists of one batch.
const MaxImportSamples = 25

type (
	DuplicatePolicy string
	ImportMode      string
)

var (
	ErrInvalidDuplicatePolicy = errors.New("invalid duplicate policy")
	ErrInvalidImportMode      = errors.New("invalid import mode")
)

// ParseDuplicatePolicy defaults to skip when s is empty.
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch p := DuplicatePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PolicySkip, nil
	case PolicySkip, PolicyReplace, PolicyAllow:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDuplicatePolicy, s)
}

// ParseImportMode defaults to check when s is empty.
func ParseImportMode(s string) (ImportMode, error) {
	switch m := ImportMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeCheck, nil
	case ModeCheck, ModeCommit:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidImportMode, s)
}
