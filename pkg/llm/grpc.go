package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/codeready-toolchain/concierge/pkg/metrics"
	"github.com/codeready-toolchain/concierge/pkg/version"
)

// GenerateMethod is the full gRPC method name of the backend.
const GenerateMethod = "/concierge.generator.v1.Generator/Generate"

// GRPCGenerator calls the backend over gRPC with google.protobuf.Struct
// payloads, so no generated stubs are needed.
type GRPCGenerator struct {
	conn    *grpc.ClientConn
	timeout time.Duration
	metrics *metrics.Metrics
}

// NewGRPCGenerator connects to addr without transport security.
func NewGRPCGenerator(addr string, timeout time.Duration, m *metrics.Metrics, opts ...grpc.DialOption) (*GRPCGenerator, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUserAgent(version.Full()),
	}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to generative backend at %s: %w", addr, err)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GRPCGenerator{conn: conn, timeout: timeout, metrics: m}, nil
}

// Generate implements Generator.
func (g *GRPCGenerator) Generate(ctx context.Context, req Request) (*Reply, error) {
	start := time.Now()
	reply, err := g.generate(ctx, req)
	g.metrics.ObserveBackend("grpc", err, time.Since(start))
	return reply, err
}

func (g *GRPCGenerator) generate(ctx context.Context, req Request) (*Reply, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	in, err := toStruct(req)
	if err != nil {
		return nil, err
	}
	out := &structpb.Struct{}
	if err := g.conn.Invoke(ctx, GenerateMethod, in, out); err != nil {
		return nil, fmt.Errorf("gRPC Generate call failed: %w", err)
	}
	return fromStruct(out)
}

// Close releases the gRPC connection.
func (g *GRPCGenerator) Close() error {
	return g.conn.Close()
}

func toStruct(req Request) (*structpb.Struct, error) {
	history := make([]any, 0, len(req.History))
	for _, h := range req.History {
		history = append(history, map[string]any{"role": string(h.Role), "content": h.Content})
	}
	s, err := structpb.NewStruct(map[string]any{
		"conversation_id": req.ConversationID,
		"message":         req.Message,
		"language":        req.Language,
		"history":         history,
		"knowledge":       req.Knowledge,
		"intent":          req.Intent,
	})
	if err != nil {
		return nil, fmt.Errorf("encode generate request: %w", err)
	}
	return s, nil
}

func fromStruct(s *structpb.Struct) (*Reply, error) {
	fields := s.GetFields()
	content := strings.TrimSpace(fields["content"].GetStringValue())

	var md wireMetadata
	if meta := fields["metadata"].GetStructValue(); meta != nil {
		mf := meta.GetFields()
		if v, ok := mf["price_detected"]; ok {
			b := v.GetBoolValue()
			md.PriceDetected = &b
		}
		md.IsStyleConsultation = mf["is_style_consultation"].GetBoolValue()
		md.ConsultationCompleted = mf["consultation_completed"].GetBoolValue()
		md.Confidence = mf["confidence"].GetNumberValue()
	}
	return newReply(content, md)
}
