package status

import (
	"context"
	"log"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/taskgraph/mrworker"
)

const (
	serviceName    = "mrworker.Status"
	notifyMethod   = "/" + serviceName + "/Notify"
	defaultTimeout = 2 * time.Second
)

// Collector receives status messages on the master side.
type Collector interface {
	Notify(ctx context.Context, message *wrapperspb.StringValue) (*emptypb.Empty, error)
}

func notifyHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Collector).Notify(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: notifyMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(Collector).Notify(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

// ServiceDesc describes the status collection service. Register it with
// server.RegisterService(&status.ServiceDesc, collector).
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*Collector)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Notify", Handler: notifyHandler},
	},
	Streams: []grpc.StreamDesc{},
}

// NotifierCollector hands every collected message to a Notifier, e.g. a
// LogNotifier on the master.
type NotifierCollector struct {
	Notifier mrworker.Notifier
}

func (c *NotifierCollector) Notify(ctx context.Context, message *wrapperspb.StringValue) (*emptypb.Empty, error) {
	c.Notifier.Notify(message.GetValue())
	return &emptypb.Empty{}, nil
}

// NewCollectorServer returns a grpc server with c registered.
func NewCollectorServer(c Collector, opts ...grpc.ServerOption) *grpc.Server {
	server := grpc.NewServer(opts...)
	server.RegisterService(&ServiceDesc, c)
	return server
}

// GRPCNotifier forwards status messages to a Collector.
type GRPCNotifier struct {
	conn    *grpc.ClientConn
	timeout time.Duration
	logger  *log.Logger
}

// DialGRPCNotifier creates a notifier for the collector at addr. Extra dial
// options are appended after the default insecure transport credentials.
func DialGRPCNotifier(addr string, logger *log.Logger, opts ...grpc.DialOption) (*GRPCNotifier, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, err
	}
	return &GRPCNotifier{conn: conn, timeout: defaultTimeout, logger: logger}, nil
}

func (n *GRPCNotifier) Notify(message string) {
	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()
	if err := n.conn.Invoke(ctx, notifyMethod, wrapperspb.String(message), new(emptypb.Empty)); err != nil {
		n.logger.Printf("grpc status notify failed; message: %s, error: %v", message, err)
	}
}

func (n *GRPCNotifier) Close() error {
	return n.conn.Close()
}
