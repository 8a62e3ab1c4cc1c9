package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/joseph-ayodele/contracts-tracker/internal/common"
	"github.com/joseph-ayodele/contracts-tracker/internal/scoring"
)

// ContractServiceName is the fully qualified gRPC service name.
const ContractServiceName = "contracts.v1.ContractService"

// ContractServiceServer is the gRPC surface. Messages are structpb.Struct
// documents shaped like the HTTP JSON bodies.
type ContractServiceServer interface {
	ScoreRecord(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetContract(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetContractStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListContracts(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	IngestPath(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	IngestDirectory(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ExportContracts(ctx context.Context, req *structpb.Struct) (*wrapperspb.BytesValue, error)
}

// ContractService implements ContractServiceServer over Deps.
type ContractService struct {
	deps   Deps
	logger *slog.Logger
}

var _ ContractServiceServer = (*ContractService)(nil)

func NewContractService(deps Deps) *ContractService {
	deps = deps.withDefaults()
	return &ContractService{deps: deps, logger: deps.Logger}
}

// RegisterContractService registers srv on s.
func RegisterContractService(s grpc.ServiceRegistrar, srv ContractServiceServer) {
	s.RegisterService(&ContractServiceDesc, srv)
}

// unary adapts one typed method to a grpc.MethodHandler.
func unary[Req proto.Message](name string, newReq func() Req, call func(ContractServiceServer, context.Context, Req) (proto.Message, error)) grpc.MethodDesc {
	full := "/" + ContractServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := newReq()
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ContractServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(ContractServiceServer), ctx, req.(Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func newStruct() *structpb.Struct { return new(structpb.Struct) }

// ContractServiceDesc describes contracts.v1.ContractService.
var ContractServiceDesc = grpc.ServiceDesc{
	ServiceName: ContractServiceName,
	HandlerType: (*ContractServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("ScoreRecord", newStruct, func(s ContractServiceServer, ctx context.Context, in *structpb.Struct) (proto.Message, error) {
			return s.ScoreRecord(ctx, in)
		}),
		unary("GetContract", newStruct, func(s ContractServiceServer, ctx context.Context, in *structpb.Struct) (proto.Message, error) {
			return s.GetContract(ctx, in)
		}),
		unary("GetContractStatus", newStruct, func(s ContractServiceServer, ctx context.Context, in *structpb.Struct) (proto.Message, error) {
			return s.GetContractStatus(ctx, in)
		}),
		unary("ListContracts", newStruct, func(s ContractServiceServer, ctx context.Context, in *structpb.Struct) (proto.Message, error) {
			return s.ListContracts(ctx, in)
		}),
		unary("IngestPath", newStruct, func(s ContractServiceServer, ctx context.Context, in *structpb.Struct) (proto.Message, error) {
			return s.IngestPath(ctx, in)
		}),
		unary("IngestDirectory", newStruct, func(s ContractServiceServer, ctx context.Context, in *structpb.Struct) (proto.Message, error) {
			return s.IngestDirectory(ctx, in)
		}),
		unary("ExportContracts", newStruct, func(s ContractServiceServer, ctx context.Context, in *structpb.Struct) (proto.Message, error) {
			return s.ExportContracts(ctx, in)
		}),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "contracts/v1/contracts.proto",
}

// UnaryInterceptor tags the context with a request ID (from the
// x-request-id metadata key when present), logs the call and converts
// application errors into gRPC statuses.
func UnaryInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		reqID := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if v := md.Get("x-request-id"); len(v) > 0 {
				reqID = v[0]
			}
		}
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx = common.WithRequestID(ctx, reqID)

		resp, err := handler(ctx, req)
		err = common.GRPCStatus(err)
		code := status.Code(err)
		attrs := []any{"request_id", reqID, "method", info.FullMethod, "code", code.String(), "elapsed_ms", time.Since(start).Milliseconds()}
		if err != nil {
			logger.Warn("grpc.request.failed", append(attrs, "error", err)...)
			return nil, err
		}
		logger.Info("grpc.request", attrs...)
		return resp, nil
	}
}

func (s *ContractService) ScoreRecord(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	withBreakdown, err := boolField(req, "breakdown", false)
	if err != nil {
		return nil, common.GRPCStatus(err)
	}
	var record map[string]any
	if v, ok := req.GetFields()["record"]; ok {
		sv := v.GetStructValue()
		if sv == nil {
			return nil, common.InvalidArgumentError("record must be an object")
		}
		record = sv.AsMap()
	}
	scorer := scoring.NewScorer()
	if withBreakdown {
		scorer = scoring.NewScorer(scoring.WithBreakdown())
	}
	return toStruct(scorer.Score(scoring.RecordFromMap(record)))
}

func (s *ContractService) GetContract(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	raw, err := stringField(req, "contract_id")
	if err != nil {
		return nil, common.GRPCStatus(err)
	}
	doc, err := contractDetail(ctx, s.deps.Contracts, raw)
	if err != nil {
		return nil, common.GRPCStatus(err)
	}
	return toStruct(doc)
}

func (s *ContractService) GetContractStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	raw, err := stringField(req, "contract_id")
	if err != nil {
		return nil, common.GRPCStatus(err)
	}
	c, err := getContract(ctx, s.deps.Contracts, raw)
	if err != nil {
		return nil, common.GRPCStatus(err)
	}
	return toStruct(c.StatusView())
}

func (s *ContractService) ListContracts(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var q listQuery
	for key, dst := range map[string]*string{
		"page": &q.Page, "limit": &q.Limit, "status": &q.Status, "sort_by": &q.SortBy, "order": &q.Order,
	} {
		v, err := stringField(req, key)
		if err != nil {
			return nil, common.GRPCStatus(err)
		}
		*dst = v
	}
	page, err := listContracts(ctx, s.deps.Contracts, q)
	if err != nil {
		return nil, common.GRPCStatus(err)
	}
	return toStruct(page)
}

// ContractServiceClient is a thin client for ContractServiceDesc.
type ContractServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewContractServiceClient(cc grpc.ClientConnInterface) *ContractServiceClient {
	return &ContractServiceClient{cc: cc}
}

func (c *ContractServiceClient) invoke(ctx context.Context, method string, in, out proto.Message, opts ...grpc.CallOption) error {
	return c.cc.Invoke(ctx, "/"+ContractServiceName+"/"+method, in, out, opts...)
}

func (c *ContractServiceClient) call(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ContractServiceClient) ScoreRecord(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.call(ctx, "ScoreRecord", in, opts...)
}

func (c *ContractServiceClient) GetContract(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.call(ctx, "GetContract", in, opts...)
}

func (c *ContractServiceClient) GetContractStatus(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.call(ctx, "GetContractStatus", in, opts...)
}

func (c *ContractServiceClient) ListContracts(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.call(ctx, "ListContracts", in, opts...)
}

func (c *ContractServiceClient) IngestPath(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.call(ctx, "IngestPath", in, opts...)
}

func (c *ContractServiceClient) IngestDirectory(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.call(ctx, "IngestDirectory", in, opts...)
}

func (c *ContractServiceClient) ExportContracts(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	out := new(wrapperspb.BytesValue)
	if err := c.invoke(ctx, "ExportContracts", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
