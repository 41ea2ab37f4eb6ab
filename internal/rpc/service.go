// Package rpc serves unary gRPC services whose request and response messages
// are google.protobuf.Struct. Service descriptors are built at runtime and
// registered in the global proto registry so server reflection can describe
// them to grpcurl.
package rpc

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/known/structpb"
)

const structTypeName = ".google.protobuf.Struct"

// Handler serves one unary method.
type Handler func(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

// Method is a named unary method of a Service.
type Method struct {
	Name    string
	Handler Handler
}

// Service is a gRPC service described by package, name and methods.
type Service struct {
	Package string
	Name    string
	Methods []Method
}

// FullName returns the fully qualified service name, e.g. pkg.v1.Service.
func (s Service) FullName() string {
	return s.Package + "." + s.Name
}

// FileName is the synthetic .proto path the descriptor is registered under.
func (s Service) FileName() string {
	return strings.ReplaceAll(s.Package, ".", "/") + "/" + strings.ToLower(s.Name) + ".proto"
}

var registerMu sync.Mutex

// Descriptor builds the service descriptor and registers its file in
// protoregistry.GlobalFiles. Registering the same file twice is a no-op.
func Descriptor(s Service) (protoreflect.ServiceDescriptor, error) {
	if s.Package == "" || s.Name == "" {
		return nil, fmt.Errorf("service package and name are required")
	}

	registerMu.Lock()
	defer registerMu.Unlock()

	if file, err := protoregistry.GlobalFiles.FindFileByPath(s.FileName()); err == nil {
		svc := file.Services().ByName(protoreflect.Name(s.Name))
		if svc == nil {
			return nil, fmt.Errorf("file %s already registered without service %s", s.FileName(), s.Name)
		}
		return svc, nil
	}

	methods := make([]*descriptorpb.MethodDescriptorProto, 0, len(s.Methods))
	for _, m := range s.Methods {
		methods = append(methods, &descriptorpb.MethodDescriptorProto{
			Name:       proto.String(m.Name),
			InputType:  proto.String(structTypeName),
			OutputType: proto.String(structTypeName),
		})
	}

	fdp := &descriptorpb.FileDescriptorProto{
		Name:       proto.String(s.FileName()),
		Package:    proto.String(s.Package),
		Syntax:     proto.String("proto3"),
		Dependency: []string{structpb.File_google_protobuf_struct_proto.Path()},
		Service: []*descriptorpb.ServiceDescriptorProto{{
			Name:   proto.String(s.Name),
			Method: methods,
		}},
	}

	file, err := protodesc.NewFile(fdp, protoregistry.GlobalFiles)
	if err != nil {
		return nil, fmt.Errorf("build descriptor %s: %w", s.FullName(), err)
	}
	if err := protoregistry.GlobalFiles.RegisterFile(file); err != nil {
		return nil, fmt.Errorf("register descriptor %s: %w", s.FullName(), err)
	}
	return file.Services().ByName(protoreflect.Name(s.Name)), nil
}

// Register adds the service to a gRPC server.
func Register(server grpc.ServiceRegistrar, s Service) error {
	if _, err := Descriptor(s); err != nil {
		return err
	}

	desc := &grpc.ServiceDesc{
		ServiceName: s.FullName(),
		HandlerType: (*any)(nil),
		Metadata:    s.FileName(),
	}
	for _, m := range s.Methods {
		desc.Methods = append(desc.Methods, grpc.MethodDesc{
			MethodName: m.Name,
			Handler:    unaryHandler("/"+s.FullName()+"/"+m.Name, m.Handler),
		})
	}

	server.RegisterService(desc, s)
	return nil
}

// MustRegister is Register for startup wiring, where failure is a programming error.
func MustRegister(server grpc.ServiceRegistrar, s Service) {
	if err := Register(server, s); err != nil {
		panic(err)
	}
}

func unaryHandler(fullMethod string, h Handler) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return h(ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return h(ctx, req.(*structpb.Struct))
		})
	}
}

// Invoke calls service/method on conn with a Struct request.
func Invoke(ctx context.Context, conn grpc.ClientConnInterface, service, method string, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil {
		req = &structpb.Struct{}
	}
	out := new(structpb.Struct)
	if err := conn.Invoke(ctx, "/"+service+"/"+method, req, out); err != nil {
		return nil, err
	}
	return out, nil
}

// StringField reads a string field from a request, or "" when absent.
func StringField(req *structpb.Struct, name string) string {
	if req == nil {
		return ""
	}
	return req.GetFields()[name].GetStringValue()
}

// Strings converts a string slice for use in structpb.NewStruct.
func Strings(in []string) []any {
	out := make([]any, 0, len(in))
	for _, s := range in {
		out = append(out, s)
	}
	return out
}
