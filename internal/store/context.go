package store

import (
	"fmt"

	"github.com/franz/media-vault/internal/util"
)

// Context tags why an asset was referenced. The vocabulary is closed:
// unknown values are rejected at the boundary rather than stored loosely.
type Context string

const (
	ContextAvatar Context = "avatar"
	ContextCover  Context = "cover"
	ContextPost   Context = "post"
	ContextChat   Context = "chat"
	ContextItem   Context = "item"
	ContextRaw    Context = "raw"
)

// Contexts lists the full vocabulary
var Contexts = []Context{
	ContextAvatar,
	ContextCover,
	ContextPost,
	ContextChat,
	ContextItem,
	ContextRaw,
}

// ParseContext validates a context string against the closed vocabulary
func ParseContext(s string) (Context, error) {
	for _, c := range Contexts {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: unknown context %q", util.ErrInvalidConfig, s)
}

// IsDerived reports whether the context is an automated derivative
// registration (avatar/cover) rather than a primary source
func (c Context) IsDerived() bool {
	return c == ContextAvatar || c == ContextCover
}
