package collmesh

import "github.com/pkg/errors"

var (
	ErrUnsupportedVersion = errors.New("unsupported .collisionmesh version")
	ErrCorruptFile        = errors.New("corrupted .collisionmesh file")
	ErrInvalidGeometry    = errors.New("invalid collision geometry")
)
