// Package api implements the ByteBeam HTTP surface: ticket creation and
// upgrade, landing pages, status queries, multipart ingest and streaming
// egress.
package api

import (
	"github.com/marmos91/bytebeam/pkg/relay"
)

// Handler holds the shared state behind every route. It is cheap to copy;
// it only carries references.
type Handler struct {
	registry *relay.Registry
}

// NewHandler creates the route handler set over a ticket registry.
func NewHandler(registry *relay.Registry) *Handler {
	return &Handler{registry: registry}
}
