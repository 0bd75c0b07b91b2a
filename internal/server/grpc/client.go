package grpc

import (
	"context"

	"github.com/mdhender/promisance/internal/common"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls the game service. After Login it sends the session token
// with every request.
type Client struct {
	cc    grpc.ClientConnInterface
	token string
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) Token() string { return c.token }

func (c *Client) SetToken(token string) { c.token = token }

func (c *Client) outgoing(ctx context.Context) context.Context {
	if c.token == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, common.SessionTokenHeaderName, c.token)
}

func (c *Client) call(ctx context.Context, method string, in map[string]any) (map[string]any, error) {
	req, err := structpb.NewStruct(in)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(c.outgoing(ctx), FullMethod(method), req, out); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}

func (c *Client) Login(ctx context.Context, username, password string) (map[string]any, error) {
	res, err := c.call(ctx, MethodLogin, map[string]any{"username": username, "password": password})
	if err != nil {
		return nil, err
	}
	if token, ok := res["session_token"].(string); ok {
		c.token = token
	}
	return res, nil
}

func (c *Client) Logout(ctx context.Context) error {
	req, err := structpb.NewStruct(nil)
	if err != nil {
		return err
	}
	if err := c.cc.Invoke(c.outgoing(ctx), FullMethod(MethodLogout), req, new(emptypb.Empty)); err != nil {
		return err
	}
	c.token = ""
	return nil
}

func (c *Client) Signup(ctx context.Context, username, password, empire string) (map[string]any, error) {
	return c.call(ctx, MethodSignup, map[string]any{"username": username, "password": password, "empire": empire})
}

func (c *Client) Status(ctx context.Context) (map[string]any, error) {
	return c.call(ctx, MethodStatus, nil)
}

func (c *Client) Empire(ctx context.Context) (map[string]any, error) {
	return c.call(ctx, MethodGetEmpire, nil)
}

func (c *Client) UseTurns(ctx context.Context, n int) (map[string]any, error) {
	return c.call(ctx, MethodUseTurns, map[string]any{"turns": n})
}

// Do calls a method that takes no arguments, e.g. MethodValidate.
func (c *Client) Do(ctx context.Context, method string) (map[string]any, error) {
	return c.call(ctx, method, nil)
}
