package wire

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name, matching the
// naming convention protoc-gen-go-grpc would have produced for a service
// named ClusterFederation.
const ServiceName = "agentplane.federation.ClusterFederation"

// ClusterFederationServer is the interface a cluster-side daemon
// implements to serve the federation contract of §6.
type ClusterFederationServer interface {
	SpawnAgent(context.Context, *SpawnAgentRequest) (*SpawnAgentResponse, error)
	KillAgent(context.Context, *KillAgentRequest) (*KillAgentResponse, error)
	ExecuteCommand(*ExecuteCommandRequest, ClusterFederation_ExecuteCommandServer) error
	GetAgentStatus(context.Context, *GetAgentStatusRequest) (*GetAgentStatusResponse, error)
	ListAgents(context.Context, *ListAgentsRequest) (*ListAgentsResponse, error)
	Heartbeat(context.Context, *HeartbeatRequest) (*HeartbeatResponse, error)
	StreamEvents(ClusterFederation_StreamEventsServer) error
	ExportAgent(context.Context, *ExportAgentRequest) (*ExportAgentResponse, error)
	ImportAgent(context.Context, *ImportAgentRequest) (*ImportAgentResponse, error)
}

// UnimplementedClusterFederationServer embeds into a concrete server to
// satisfy forward compatibility, matching the protoc-gen-go-grpc idiom.
type UnimplementedClusterFederationServer struct{}

func (UnimplementedClusterFederationServer) SpawnAgent(context.Context, *SpawnAgentRequest) (*SpawnAgentResponse, error) {
	return nil, NewError(ErrClusterError, "SpawnAgent not implemented")
}
func (UnimplementedClusterFederationServer) KillAgent(context.Context, *KillAgentRequest) (*KillAgentResponse, error) {
	return nil, NewError(ErrClusterError, "KillAgent not implemented")
}
func (UnimplementedClusterFederationServer) ExecuteCommand(*ExecuteCommandRequest, ClusterFederation_ExecuteCommandServer) error {
	return NewError(ErrClusterError, "ExecuteCommand not implemented")
}
func (UnimplementedClusterFederationServer) GetAgentStatus(context.Context, *GetAgentStatusRequest) (*GetAgentStatusResponse, error) {
	return nil, NewError(ErrClusterError, "GetAgentStatus not implemented")
}
func (UnimplementedClusterFederationServer) ListAgents(context.Context, *ListAgentsRequest) (*ListAgentsResponse, error) {
	return nil, NewError(ErrClusterError, "ListAgents not implemented")
}
func (UnimplementedClusterFederationServer) Heartbeat(context.Context, *HeartbeatRequest) (*HeartbeatResponse, error) {
	return nil, NewError(ErrClusterError, "Heartbeat not implemented")
}
func (UnimplementedClusterFederationServer) StreamEvents(ClusterFederation_StreamEventsServer) error {
	return NewError(ErrClusterError, "StreamEvents not implemented")
}
func (UnimplementedClusterFederationServer) ExportAgent(context.Context, *ExportAgentRequest) (*ExportAgentResponse, error) {
	return nil, NewError(ErrClusterError, "ExportAgent not implemented")
}
func (UnimplementedClusterFederationServer) ImportAgent(context.Context, *ImportAgentRequest) (*ImportAgentResponse, error) {
	return nil, NewError(ErrClusterError, "ImportAgent not implemented")
}

// ClusterFederation_ExecuteCommandServer is the server-streaming handle for
// ExecuteCommand, matching the generated *_Server interface shape.
type ClusterFederation_ExecuteCommandServer interface {
	Send(*CommandChunk) error
	grpc.ServerStream
}

type executeCommandServer struct {
	grpc.ServerStream
}

func (s *executeCommandServer) Send(m *CommandChunk) error {
	return s.ServerStream.SendMsg(m)
}

// ClusterFederation_StreamEventsServer is the bidi-streaming handle for
// StreamEvents on the server side.
type ClusterFederation_StreamEventsServer interface {
	Send(*StreamEventsMessage) error
	Recv() (*StreamEventsMessage, error)
	grpc.ServerStream
}

type streamEventsServer struct {
	grpc.ServerStream
}

func (s *streamEventsServer) Send(m *StreamEventsMessage) error {
	return s.ServerStream.SendMsg(m)
}

func (s *streamEventsServer) Recv() (*StreamEventsMessage, error) {
	m := new(StreamEventsMessage)
	if err := s.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func handlerSpawnAgent(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(SpawnAgentRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ClusterFederationServer).SpawnAgent(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/SpawnAgent"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ClusterFederationServer).SpawnAgent(ctx, req.(*SpawnAgentRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func handlerKillAgent(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(KillAgentRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ClusterFederationServer).KillAgent(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/KillAgent"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ClusterFederationServer).KillAgent(ctx, req.(*KillAgentRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func handlerGetAgentStatus(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetAgentStatusRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ClusterFederationServer).GetAgentStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/GetAgentStatus"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ClusterFederationServer).GetAgentStatus(ctx, req.(*GetAgentStatusRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func handlerListAgents(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ListAgentsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ClusterFederationServer).ListAgents(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/ListAgents"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ClusterFederationServer).ListAgents(ctx, req.(*ListAgentsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func handlerHeartbeat(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(HeartbeatRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ClusterFederationServer).Heartbeat(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/Heartbeat"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ClusterFederationServer).Heartbeat(ctx, req.(*HeartbeatRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func handlerExportAgent(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ExportAgentRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ClusterFederationServer).ExportAgent(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/ExportAgent"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ClusterFederationServer).ExportAgent(ctx, req.(*ExportAgentRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func handlerImportAgent(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ImportAgentRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ClusterFederationServer).ImportAgent(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/ImportAgent"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ClusterFederationServer).ImportAgent(ctx, req.(*ImportAgentRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func streamHandlerExecuteCommand(srv any, stream grpc.ServerStream) error {
	in := new(ExecuteCommandRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(ClusterFederationServer).ExecuteCommand(in, &executeCommandServer{stream})
}

func streamHandlerStreamEvents(srv any, stream grpc.ServerStream) error {
	return srv.(ClusterFederationServer).StreamEvents(&streamEventsServer{stream})
}

// ServiceDesc is the hand-authored equivalent of what protoc-gen-go-grpc
// would emit for a ClusterFederation service with the RPC set of §6.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ClusterFederationServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SpawnAgent", Handler: handlerSpawnAgent},
		{MethodName: "KillAgent", Handler: handlerKillAgent},
		{MethodName: "GetAgentStatus", Handler: handlerGetAgentStatus},
		{MethodName: "ListAgents", Handler: handlerListAgents},
		{MethodName: "Heartbeat", Handler: handlerHeartbeat},
		{MethodName: "ExportAgent", Handler: handlerExportAgent},
		{MethodName: "ImportAgent", Handler: handlerImportAgent},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "ExecuteCommand",
			Handler:       streamHandlerExecuteCommand,
			ServerStreams: true,
		},
		{
			StreamName:    "StreamEvents",
			Handler:       streamHandlerStreamEvents,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "agentplane/federation.proto",
}

// RegisterClusterFederationServer registers srv with s, matching the
// generated pb.RegisterXxxServer helper signature.
func RegisterClusterFederationServer(s grpc.ServiceRegistrar, srv ClusterFederationServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// ClusterFederationClient is the client-side interface a ClusterClient
// wraps, matching the generated pb.XxxClient shape.
type ClusterFederationClient interface {
	SpawnAgent(ctx context.Context, in *SpawnAgentRequest, opts ...grpc.CallOption) (*SpawnAgentResponse, error)
	KillAgent(ctx context.Context, in *KillAgentRequest, opts ...grpc.CallOption) (*KillAgentResponse, error)
	ExecuteCommand(ctx context.Context, in *ExecuteCommandRequest, opts ...grpc.CallOption) (ClusterFederation_ExecuteCommandClient, error)
	GetAgentStatus(ctx context.Context, in *GetAgentStatusRequest, opts ...grpc.CallOption) (*GetAgentStatusResponse, error)
	ListAgents(ctx context.Context, in *ListAgentsRequest, opts ...grpc.CallOption) (*ListAgentsResponse, error)
	Heartbeat(ctx context.Context, in *HeartbeatRequest, opts ...grpc.CallOption) (*HeartbeatResponse, error)
	StreamEvents(ctx context.Context, opts ...grpc.CallOption) (ClusterFederation_StreamEventsClient, error)
	ExportAgent(ctx context.Context, in *ExportAgentRequest, opts ...grpc.CallOption) (*ExportAgentResponse, error)
	ImportAgent(ctx context.Context, in *ImportAgentRequest, opts ...grpc.CallOption) (*ImportAgentResponse, error)
}

type clusterFederationClient struct {
	cc grpc.ClientConnInterface
}

// NewClusterFederationClient constructs a client bound to cc, matching the
// generated pb.NewXxxClient constructor.
func NewClusterFederationClient(cc grpc.ClientConnInterface) ClusterFederationClient {
	return &clusterFederationClient{cc}
}

func (c *clusterFederationClient) SpawnAgent(ctx context.Context, in *SpawnAgentRequest, opts ...grpc.CallOption) (*SpawnAgentResponse, error) {
	out := new(SpawnAgentResponse)
	if err := c.cc.Invoke(ctx, ServiceName+"/SpawnAgent", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *clusterFederationClient) KillAgent(ctx context.Context, in *KillAgentRequest, opts ...grpc.CallOption) (*KillAgentResponse, error) {
	out := new(KillAgentResponse)
	if err := c.cc.Invoke(ctx, ServiceName+"/KillAgent", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *clusterFederationClient) GetAgentStatus(ctx context.Context, in *GetAgentStatusRequest, opts ...grpc.CallOption) (*GetAgentStatusResponse, error) {
	out := new(GetAgentStatusResponse)
	if err := c.cc.Invoke(ctx, ServiceName+"/GetAgentStatus", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *clusterFederationClient) ListAgents(ctx context.Context, in *ListAgentsRequest, opts ...grpc.CallOption) (*ListAgentsResponse, error) {
	out := new(ListAgentsResponse)
	if err := c.cc.Invoke(ctx, ServiceName+"/ListAgents", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *clusterFederationClient) Heartbeat(ctx context.Context, in *HeartbeatRequest, opts ...grpc.CallOption) (*HeartbeatResponse, error) {
	out := new(HeartbeatResponse)
	if err := c.cc.Invoke(ctx, ServiceName+"/Heartbeat", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *clusterFederationClient) ExportAgent(ctx context.Context, in *ExportAgentRequest, opts ...grpc.CallOption) (*ExportAgentResponse, error) {
	out := new(ExportAgentResponse)
	if err := c.cc.Invoke(ctx, ServiceName+"/ExportAgent", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *clusterFederationClient) ImportAgent(ctx context.Context, in *ImportAgentRequest, opts ...grpc.CallOption) (*ImportAgentResponse, error) {
	out := new(ImportAgentResponse)
	if err := c.cc.Invoke(ctx, ServiceName+"/ImportAgent", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// ClusterFederation_ExecuteCommandClient is the server-streaming handle for
// ExecuteCommand on the client side.
type ClusterFederation_ExecuteCommandClient interface {
	Recv() (*CommandChunk, error)
	grpc.ClientStream
}

type executeCommandClient struct {
	grpc.ClientStream
}

func (x *executeCommandClient) Recv() (*CommandChunk, error) {
	m := new(CommandChunk)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *clusterFederationClient) ExecuteCommand(ctx context.Context, in *ExecuteCommandRequest, opts ...grpc.CallOption) (ClusterFederation_ExecuteCommandClient, error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], ServiceName+"/ExecuteCommand", opts...)
	if err != nil {
		return nil, err
	}
	x := &executeCommandClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

// ClusterFederation_StreamEventsClient is the bidi-streaming handle for
// StreamEvents on the client side.
type ClusterFederation_StreamEventsClient interface {
	Send(*StreamEventsMessage) error
	Recv() (*StreamEventsMessage, error)
	grpc.ClientStream
}

type streamEventsClient struct {
	grpc.ClientStream
}

func (x *streamEventsClient) Send(m *StreamEventsMessage) error {
	return x.ClientStream.SendMsg(m)
}

func (x *streamEventsClient) Recv() (*StreamEventsMessage, error) {
	m := new(StreamEventsMessage)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *clusterFederationClient) StreamEvents(ctx context.Context, opts ...grpc.CallOption) (ClusterFederation_StreamEventsClient, error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[1], ServiceName+"/StreamEvents", opts...)
	if err != nil {
		return nil, err
	}
	return &streamEventsClient{stream}, nil
}
