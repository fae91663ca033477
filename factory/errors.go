package factory

import (
	"errors"

	"github.com/bitfsorg/libroyalty-go/vault"
)

var (
	// ErrNotFound indicates no vault is registered under the asset id. It is
	// the vault package's sentinel so callers need only one check.
	ErrNotFound = vault.ErrNotFound

	// ErrUnauthorized indicates the caller is not the factory owner.
	ErrUnauthorized = errors.New("factory: unauthorized")

	// ErrInvalidTemplate indicates the template config is unusable.
	ErrInvalidTemplate = errors.New("factory: invalid template")

	// ErrInvalidMetadata indicates metadata cannot be encoded or decoded.
	ErrInvalidMetadata = errors.New("factory: invalid metadata")

	// ErrNoMetadata indicates the asset was registered without metadata.
	ErrNoMetadata = errors.New("factory: asset has no metadata")

	// ErrNilParam indicates a required dependency is missing.
	ErrNilParam = errors.New("factory: required parameter is nil")
)
