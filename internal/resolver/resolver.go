// Interface for resolving an opaque DNS query
package resolver

import (
	"context"
	"time"
)

// ResponseMetaData returns metadata about the query made by Resolve(). It mostly contains
// statistical and trace meta-information.
type ResponseMetaData struct {
	Latency         time.Duration // Wall-clock time of the winning attempt
	PayloadSize     int
	ServerTries     int    // Number of servers contacted
	Failures        int    // Attempts which had failed by the time a winner emerged
	FinalServerUsed string // Name of the server which provided the response
}

// Resolver resolves a DNS query in wire format. Queries and responses are treated as opaque
// bytes; a Resolver never looks inside them.
type Resolver interface {
	// Resolve returns the response bytes and metadata or an error.
	Resolve(ctx context.Context, query []byte) (resp []byte, respMeta *ResponseMetaData, err error)
}
