package vm

import (
	"context"
	"sync"

	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/dynamic"
	"github.com/jhump/protoreflect/grpcreflect"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	reflectpb "google.golang.org/grpc/reflection/grpc_reflection_v1alpha"
)

// grpcRegistry holds the small amount of process-wide state a dynamic
// gRPC native needs — open connections, keyed by target — behind one
// mutex. Reflected service descriptors are not cached; each call
// resolves them again. This mirrors the scoped-global-state
// shape of ffi.cc's default library list (a mutex-guarded global table
// natives consult), narrowed here to gRPC connections instead of
// dlopen'd libraries.
type grpcRegistry struct {
	mu    sync.Mutex
	conns map[string]*grpc.ClientConn
}

var sharedGrpcRegistry = &grpcRegistry{conns: make(map[string]*grpc.ClientConn)}

func (r *grpcRegistry) connFor(target string) (*grpc.ClientConn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.conns[target]; ok {
		return c, nil
	}
	c, err := grpc.Dial(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	r.conns[target] = c
	return c, nil
}

// NativeGrpcInvoke performs a single dynamic unary gRPC call: the
// receiver is a heap string holding "target/fully.qualified.Method",
// the sole argument is a heap string holding a JSON-ish payload the
// caller already encoded for the request message's fields. It resolves
// the method via server reflection (github.com/jhump/protoreflect's
// grpcreflect + desc), builds a dynamic.Message request, invokes it, and
// returns the encoded response as a heap string — exercising the
// native-method boundary's allocation-retry protocol (string allocation
// can legitimately return RetryAfterGC) around a real I/O-bound native.
func NativeGrpcInvoke(p *Process, args NativeArgs) NativeResult {
	if args.Count() != 2 {
		return NativeFail(WrongArgumentType)
	}
	recv := args.Arg(0)
	payload := args.Arg(1)
	if k, ok := recv.kind(); !ok || k != KindString {
		return NativeFail(WrongArgumentType)
	}
	if k, ok := payload.kind(); !ok || k != KindString {
		return NativeFail(WrongArgumentType)
	}

	target, method, ok := splitTargetMethod(recv.asString().S)
	if !ok {
		return NativeFail(WrongArgumentType)
	}

	conn, err := sharedGrpcRegistry.connFor(target)
	if err != nil {
		return NativeFail(IllegalState)
	}

	ctx := context.Background()
	refClient := grpcreflect.NewClientV1Alpha(ctx, reflectpb.NewServerReflectionClient(conn))
	defer refClient.Reset()

	methodDesc, err := resolveMethod(refClient, method)
	if err != nil {
		return NativeFail(IllegalState)
	}

	req := dynamic.NewMessage(methodDesc.GetInputType())
	if err := req.UnmarshalJSON([]byte(payload.asString().S)); err != nil {
		return NativeFail(WrongArgumentType)
	}

	resp := dynamic.NewMessage(methodDesc.GetOutputType())
	fullMethod := "/" + methodDesc.GetService().GetFullyQualifiedName() + "/" + methodDesc.GetName()
	if err := conn.Invoke(ctx, fullMethod, req, resp); err != nil {
		return NativeFail(IllegalState)
	}

	respJSON, err := resp.MarshalJSON()
	if err != nil {
		return NativeFail(IllegalState)
	}

	v, failure := p.NewString(string(respJSON))
	if failure != 0 {
		return NativeFail(failure)
	}
	return NativeOK(v)
}

func resolveMethod(refClient *grpcreflect.Client, fullMethodName string) (*desc.MethodDescriptor, error) {
	serviceName, methodName, _ := splitLast(fullMethodName)
	svcDesc, err := refClient.ResolveService(serviceName)
	if err != nil {
		return nil, err
	}
	return svcDesc.FindMethodByName(methodName), nil
}

func splitTargetMethod(s string) (target, method string, ok bool) {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '/' {
			return s[:i], s[i+1:], true
		}
	}
	return "", "", false
}

func splitLast(s string) (head, tail string, ok bool) {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '.' {
			return s[:i], s[i+1:], true
		}
	}
	return "", s, false
}
