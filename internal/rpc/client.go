package rpc

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/matheus3301/wpparchive/internal/store"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// DefaultTimeout bounds every call made through a Client.
const DefaultTimeout = 30 * time.Second

// MaxMessageSize lifts gRPC's 4 MB default so whole query and export results
// fit in one response.
const MaxMessageSize = math.MaxInt32

// Client talks to a running daemon over its Unix socket.
type Client struct {
	conn    *grpc.ClientConn
	timeout time.Duration
}

var _ Reader = (*Client)(nil)

// Dial connects to the daemon listening on socketPath. The connection is
// established lazily on the first call.
func Dial(socketPath string) (*Client, error) {
	conn, err := grpc.NewClient("unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.ForceCodec(jsonCodec{}),
			grpc.MaxCallRecvMsgSize(MaxMessageSize),
			grpc.MaxCallSendMsgSize(MaxMessageSize),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("dial daemon: %w", err)
	}
	return &Client{conn: conn, timeout: DefaultTimeout}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) invoke(method string, req, resp any) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	err := c.conn.Invoke(ctx, "/"+ServiceName+"/"+method, req, resp)
	return fromStatus(method, err)
}

// QueryMessages runs a query on the daemon's store.
func (c *Client) QueryMessages(f store.Filter) ([]store.Message, error) {
	resp := new(QueryMessagesResponse)
	if err := c.invoke("QueryMessages", &QueryMessagesRequest{Filter: f}, resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// ExportMessages runs an export on the daemon's store.
func (c *Client) ExportMessages(f store.Filter) ([]store.ConversationExport, error) {
	resp := new(ExportMessagesResponse)
	if err := c.invoke("ExportMessages", &ExportMessagesRequest{Filter: f}, resp); err != nil {
		return nil, err
	}
	return resp.Conversations, nil
}

// GetStats returns the daemon store's statistics.
func (c *Client) GetStats() (*store.Stats, error) {
	resp := new(GetStatsResponse)
	if err := c.invoke("GetStats", &GetStatsRequest{}, resp); err != nil {
		return nil, err
	}
	return &resp.Stats, nil
}

// Conversation returns one conversation from the daemon's store, or nil when
// it is unknown.
func (c *Client) Conversation(jid string) (*store.Conversation, error) {
	resp := new(GetConversationResponse)
	if err := c.invoke("GetConversation", &GetConversationRequest{JID: jid}, resp); err != nil {
		return nil, err
	}
	return resp.Conversation, nil
}

// Participants returns the recorded members of a conversation.
func (c *Client) Participants(conversationJID string) ([]store.Participant, error) {
	resp := new(ListParticipantsResponse)
	if err := c.invoke("ListParticipants", &ListParticipantsRequest{JID: conversationJID}, resp); err != nil {
		return nil, err
	}
	return resp.Participants, nil
}

// Status returns the daemon's runtime state.
func (c *Client) Status() (*StatusResponse, error) {
	resp := new(StatusResponse)
	if err := c.invoke("Status", &StatusRequest{}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}
