package config

// BackendTransport selects how the generative backend is reached.
type BackendTransport string

const (
	// BackendTransportHTTP posts JSON to an HTTP endpoint
	BackendTransportHTTP BackendTransport = "http"
	// BackendTransportGRPC calls the Generate RPC
	BackendTransportGRPC BackendTransport = "grpc"
	// BackendTransportNone answers from the knowledge base only
	BackendTransportNone BackendTransport = "none"
)

// IsValid checks if the transport is known
func (t BackendTransport) IsValid() bool {
	switch t {
	case BackendTransportHTTP, BackendTransportGRPC, BackendTransportNone:
		return true
	default:
		return false
	}
}
