package rpc

import (
	"context"
	"time"

	"github.com/matheus3301/wpparchive/internal/archive"
	"github.com/matheus3301/wpparchive/internal/status"
	"github.com/matheus3301/wpparchive/internal/store"
	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "wpparchive.v1.History"

// Reader is the read side of the history store. *store.Store and *Client
// both implement it.
type Reader interface {
	QueryMessages(f store.Filter) ([]store.Message, error)
	ExportMessages(f store.Filter) ([]store.ConversationExport, error)
	GetStats() (*store.Stats, error)
	Conversation(jid string) (*store.Conversation, error)
	Participants(conversationJID string) ([]store.Participant, error)
}

// HistoryServer is the server API for the History service.
type HistoryServer interface {
	QueryMessages(context.Context, *QueryMessagesRequest) (*QueryMessagesResponse, error)
	ExportMessages(context.Context, *ExportMessagesRequest) (*ExportMessagesResponse, error)
	GetStats(context.Context, *GetStatsRequest) (*GetStatsResponse, error)
	GetConversation(context.Context, *GetConversationRequest) (*GetConversationResponse, error)
	ListParticipants(context.Context, *ListParticipantsRequest) (*ListParticipantsResponse, error)
	Status(context.Context, *StatusRequest) (*StatusResponse, error)
}

// CounterSource reports archive engine counters.
type CounterSource interface {
	Counters() archive.Counters
}

// PhoneSource reports the paired phone number.
type PhoneSource interface {
	PhoneNumber() string
}

// Service implements HistoryServer over a Reader.
type Service struct {
	account   string
	storePath string
	startedAt time.Time
	history   Reader
	machine   *status.Machine
	counters  CounterSource
	phone     PhoneSource
}

// NewService creates the History service. counters and phone may be nil.
func NewService(account, storePath string, history Reader, machine *status.Machine, counters CounterSource, phone PhoneSource) *Service {
	return &Service{
		account:   account,
		storePath: storePath,
		startedAt: time.Now(),
		history:   history,
		machine:   machine,
		counters:  counters,
		phone:     phone,
	}
}

func (s *Service) QueryMessages(_ context.Context, req *QueryMessagesRequest) (*QueryMessagesResponse, error) {
	msgs, err := s.history.QueryMessages(req.Filter)
	if err != nil {
		return nil, toStatus(err)
	}
	return &QueryMessagesResponse{Messages: msgs}, nil
}

func (s *Service) ExportMessages(_ context.Context, req *ExportMessagesRequest) (*ExportMessagesResponse, error) {
	groups, err := s.history.ExportMessages(req.Filter)
	if err != nil {
		return nil, toStatus(err)
	}
	return &ExportMessagesResponse{Conversations: groups}, nil
}

func (s *Service) GetStats(_ context.Context, _ *GetStatsRequest) (*GetStatsResponse, error) {
	stats, err := s.history.GetStats()
	if err != nil {
		return nil, toStatus(err)
	}
	return &GetStatsResponse{Stats: *stats}, nil
}

func (s *Service) GetConversation(_ context.Context, req *GetConversationRequest) (*GetConversationResponse, error) {
	c, err := s.history.Conversation(req.JID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &GetConversationResponse{Conversation: c}, nil
}

func (s *Service) ListParticipants(_ context.Context, req *ListParticipantsRequest) (*ListParticipantsResponse, error) {
	members, err := s.history.Participants(req.JID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &ListParticipantsResponse{Participants: members}, nil
}

func (s *Service) Status(_ context.Context, _ *StatusRequest) (*StatusResponse, error) {
	resp := &StatusResponse{
		Account:   s.account,
		StorePath: s.storePath,
		UptimeMs:  time.Since(s.startedAt).Milliseconds(),
	}
	if s.machine != nil {
		resp.State = string(s.machine.Current())
		resp.StateSince = s.machine.Since().UnixMilli()
	}
	if s.counters != nil {
		resp.Archive = s.counters.Counters()
	}
	if s.phone != nil {
		resp.PhoneNumber = s.phone.PhoneNumber()
	}
	return resp, nil
}

// RegisterHistoryServer registers srv on s. The server must be created with
// ServerOptions so the JSON codec is in effect.
func RegisterHistoryServer(s grpc.ServiceRegistrar, srv HistoryServer) {
	s.RegisterService(&historyServiceDesc, srv)
}

// ServerOptions returns the options a grpc.Server needs to serve History.
func ServerOptions() []grpc.ServerOption {
	return []grpc.ServerOption{
		grpc.ForceServerCodec(jsonCodec{}),
		grpc.MaxRecvMsgSize(MaxMessageSize),
		grpc.MaxSendMsgSize(MaxMessageSize),
	}
}

func queryMessagesHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(QueryMessagesRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(HistoryServer).QueryMessages(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/QueryMessages"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(HistoryServer).QueryMessages(ctx, req.(*QueryMessagesRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func exportMessagesHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ExportMessagesRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(HistoryServer).ExportMessages(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/ExportMessages"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(HistoryServer).ExportMessages(ctx, req.(*ExportMessagesRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func getStatsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetStatsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(HistoryServer).GetStats(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/GetStats"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(HistoryServer).GetStats(ctx, req.(*GetStatsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func getConversationHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetConversationRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(HistoryServer).GetConversation(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/GetConversation"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(HistoryServer).GetConversation(ctx, req.(*GetConversationRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func listParticipantsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ListParticipantsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(HistoryServer).ListParticipants(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/ListParticipants"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(HistoryServer).ListParticipants(ctx, req.(*ListParticipantsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func statusHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(StatusRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(HistoryServer).Status(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Status"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(HistoryServer).Status(ctx, req.(*StatusRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var historyServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*HistoryServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "QueryMessages", Handler: queryMessagesHandler},
		{MethodName: "ExportMessages", Handler: exportMessagesHandler},
		{MethodName: "GetStats", Handler: getStatsHandler},
		{MethodName: "GetConversation", Handler: getConversationHandler},
		{MethodName: "ListParticipants", Handler: listParticipantsHandler},
		{MethodName: "Status", Handler: statusHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "wpparchive/v1/history",
}
