package narrative

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "narrative.v1.NarrativeService"

// NarrativeServiceServer is the server API for narrative.v1.NarrativeService.
// Messages are google.protobuf.Struct values shaped like the JSON views in
// views.go.
type NarrativeServiceServer interface {
	CreateComic(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetComic(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SaveDraft(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ValidateGraph(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SubmitRevision(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ApproveRevision(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RejectRevision(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetRevision(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListRevisions(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetPublishedGraph(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StartReading(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Choose(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Jump(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Restart(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetProgress(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SyncProgress(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Subscribe(*structpb.Struct, grpc.ServerStreamingServer[structpb.Struct]) error
}

// RegisterNarrativeServiceServer registers srv on s.
func RegisterNarrativeServiceServer(s grpc.ServiceRegistrar, srv NarrativeServiceServer) {
	s.RegisterService(&NarrativeService_ServiceDesc, srv)
}

type unaryMethod func(NarrativeServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(name string, call unaryMethod) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			server := srv.(NarrativeServiceServer)
			if interceptor == nil {
				return call(server, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(server, ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func subscribeHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(NarrativeServiceServer).Subscribe(in, &grpc.GenericServerStream[structpb.Struct, structpb.Struct]{ServerStream: stream})
}

// NarrativeService_ServiceDesc is the grpc.ServiceDesc for
// narrative.v1.NarrativeService.
var NarrativeService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*NarrativeServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("CreateComic", NarrativeServiceServer.CreateComic),
		unaryHandler("GetComic", NarrativeServiceServer.GetComic),
		unaryHandler("SaveDraft", NarrativeServiceServer.SaveDraft),
		unaryHandler("ValidateGraph", NarrativeServiceServer.ValidateGraph),
		unaryHandler("SubmitRevision", NarrativeServiceServer.SubmitRevision),
		unaryHandler("ApproveRevision", NarrativeServiceServer.ApproveRevision),
		unaryHandler("RejectRevision", NarrativeServiceServer.RejectRevision),
		unaryHandler("GetRevision", NarrativeServiceServer.GetRevision),
		unaryHandler("ListRevisions", NarrativeServiceServer.ListRevisions),
		unaryHandler("GetPublishedGraph", NarrativeServiceServer.GetPublishedGraph),
		unaryHandler("StartReading", NarrativeServiceServer.StartReading),
		unaryHandler("Choose", NarrativeServiceServer.Choose),
		unaryHandler("Jump", NarrativeServiceServer.Jump),
		unaryHandler("Restart", NarrativeServiceServer.Restart),
		unaryHandler("GetProgress", NarrativeServiceServer.GetProgress),
		unaryHandler("SyncProgress", NarrativeServiceServer.SyncProgress),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Subscribe",
			Handler:       subscribeHandler,
			ServerStreams: true,
		},
	},
	Metadata: "narrative/v1/service.proto",
}

var _ NarrativeServiceServer = (*Service)(nil)
