package gfx

import "github.com/cockroachdb/errors"

// ErrInvalidDesc means that a descriptor handed to a Device is
// inconsistent and no object was created.
var ErrInvalidDesc = errors.New("gfx: invalid descriptor")

// ErrNotFound means that a named shader resource variable does not
// exist in a pipeline's resource layout.
var ErrNotFound = errors.New("gfx: resource variable not found")

// ErrOutOfDate means that the swap chain no longer matches the
// surface and must be resized before rendering can continue.
var ErrOutOfDate = errors.New("gfx: swap chain out of date")

// ErrNoRenderPass means that a command that must be recorded
// inside a render pass was issued outside of one.
var ErrNoRenderPass = errors.New("gfx: no render pass in progress")
