package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net"
	"os"
	"runtime"
	"strings"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"
)

// jsonCodec позволяет использовать gRPC с JSON-пейлоадом вместо protobuf,
// чтобы переиспользовать структуру Message без генерации кодеков.
type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }
func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}
func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// ControlServer bidirectional stream с теми же сообщениями, что и WebSocket
type ControlServer interface {
	Stream(Control_StreamServer) error
}

type UnimplementedControlServer struct{}

func (UnimplementedControlServer) Stream(Control_StreamServer) error {
	return status.Errorf(codes.Unimplemented, "method Stream not implemented")
}

type Control_StreamServer interface {
	Send(*Message) error
	Recv() (*Message, error)
	grpc.ServerStream
}

type controlStreamServer struct {
	grpc.ServerStream
}

func (x *controlStreamServer) Send(m *Message) error {
	return x.ServerStream.SendMsg(m)
}

func (x *controlStreamServer) Recv() (*Message, error) {
	m := new(Message)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func _Control_Stream_Handler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(ControlServer).Stream(&controlStreamServer{stream})
}

var _Control_serviceDesc = grpc.ServiceDesc{
	ServiceName: "ecglatent.Control",
	HandlerType: (*ControlServer)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Stream",
			Handler:       _Control_Stream_Handler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
}

func RegisterControlServer(s *grpc.Server, srv ControlServer) {
	s.RegisterService(&_Control_serviceDesc, srv)
}

// streamClient сериализует Send в один stream
type streamClient struct {
	stream Control_StreamServer
	mu     sync.Mutex
}

func (c *streamClient) send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stream.Send(&msg)
}

func (c *streamClient) close() {}

// Stream обрабатывает сообщения клиента до закрытия stream
func (s *Server) Stream(stream Control_StreamServer) error {
	c := &streamClient{stream: stream}
	s.addClient(c)
	defer s.removeClient(c)

	for {
		msg, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if err := c.send(s.processMessage(*msg)); err != nil {
			return err
		}
	}
}

func (s *Server) grpcAddr() string {
	if s.Config.GRPCAddr != "" {
		return s.Config.GRPCAddr
	}
	if runtime.GOOS == "windows" {
		return "npipe:\\\\.\\pipe\\ecglatent-grpc"
	}
	return "unix:///tmp/ecglatent-grpc.sock"
}

func (s *Server) startGRPCServer() {
	addr := s.grpcAddr()

	lis, err := listenGRPC(addr)
	if err != nil {
		log.Printf("[API] failed to start gRPC listener (%s): %v", addr, err)
		return
	}

	server := s.newGRPCServer()

	log.Printf("[API] gRPC listening on %s", addr)
	if err := server.Serve(lis); err != nil {
		log.Printf("[API] gRPC server stopped: %v", err)
	}
}

func (s *Server) newGRPCServer() *grpc.Server {
	server := grpc.NewServer(
		grpc.Creds(insecure.NewCredentials()),
		grpc.ForceServerCodec(jsonCodec{}),
	)
	RegisterControlServer(server, s)
	return server
}

func listenGRPC(addr string) (net.Listener, error) {
	switch {
	case strings.HasPrefix(addr, "unix:"):
		socketPath := strings.TrimPrefix(strings.TrimPrefix(addr, "unix:"), "//")
		if err := removeIfExists(socketPath); err != nil {
			return nil, err
		}
		return net.Listen("unix", socketPath)
	case strings.HasPrefix(addr, "npipe:"):
		return listenPipe(strings.TrimPrefix(addr, "npipe:"))
	default:
		return net.Listen("tcp", addr)
	}
}

func removeIfExists(path string) error {
	if path == "" {
		return errors.New("empty socket path")
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
