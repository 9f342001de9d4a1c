package grpc

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	core "simplehash/gateway/service/core"
	"simplehash/storage/store"
)

// Server implements AnchorServiceServer on top of the gateway service.
type Server struct {
	svc    *core.Service
	logger *zap.SugaredLogger
}

// NewServer creates a new gRPC Server instance
func NewServer(s *core.Service, l *zap.SugaredLogger) *Server {
	return &Server{svc: s, logger: l}
}

// Register adds the anchor service and the standard health service to gs.
func (s *Server) Register(gs *grpc.Server) {
	RegisterAnchorServiceServer(gs, s)

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(gs, hs)
}

// SubmitAnchor expects {"window_start": <RFC3339>, "window_end": <RFC3339>}.
func (s *Server) SubmitAnchor(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()

	// 1. Convert request to Service layer input
	input := &core.AnchorInput{
		WindowStart: fields["window_start"].GetStringValue(),
		WindowEnd:   fields["window_end"].GetStringValue(),
	}

	// 2. Call core Service layer
	accepted, err := s.svc.SubmitAnchor(ctx, input)
	if err != nil {
		return nil, s.toStatus(err)
	}

	// 3. Convert result
	s.logger.Debugf("gRPC Server: Accepted request_id: %s", accepted.RequestID)
	return structpb.NewStruct(map[string]interface{}{
		"request_id":         accepted.RequestID,
		"window_start":       accepted.WindowStart.Format(time.RFC3339Nano),
		"window_end":         accepted.WindowEnd.Format(time.RFC3339Nano),
		"received_timestamp": accepted.ReceivedTimestamp.Format(time.RFC3339Nano),
		"status":             "ACCEPTED",
	})
}

// GetAnchor expects {"request_id": <uuid>}.
func (s *Server) GetAnchor(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	st, err := s.svc.GetAnchor(ctx, req.GetFields()["request_id"].GetStringValue())
	if err != nil {
		return nil, s.toStatus(err)
	}

	out := map[string]interface{}{
		"request_id":   st.RequestID,
		"status":       st.Status,
		"window_start": st.WindowStart.Format(time.RFC3339Nano),
		"window_end":   st.WindowEnd.Format(time.RFC3339Nano),
		"retry_count":  st.RetryCount,
		"updated_at":   st.UpdatedTimestamp.Format(time.RFC3339Nano),
	}
	switch st.Status {
	case store.StatusCompleted:
		out["digest"] = st.Digest
		out["event_count"] = st.EventCount
		out["schema_version"] = st.SchemaVersion
		if st.TxHash != "" {
			out["tx_hash"] = st.TxHash
			// structpb has no integer kind
			out["block_height"] = float64(st.BlockHeight)
		}
	case store.StatusFailed:
		out["error"] = st.ErrorMessage
	}
	return structpb.NewStruct(out)
}

func (s *Server) toStatus(err error) error {
	switch {
	case errors.Is(err, core.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, store.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, core.ErrBufferFull):
		return status.Error(codes.ResourceExhausted, err.Error())
	default:
		s.logger.Errorf("gRPC Server: Service layer error: %v", err)
		return status.Error(codes.Internal, "internal error")
	}
}

var _ AnchorServiceServer = (*Server)(nil)
