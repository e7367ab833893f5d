package codec

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region types
// GenerateOptions tune a single completion.
type GenerateOptions struct {
	Model       string
	MaxTokens   int
	Temperature float64
}

// GenerateResult holds the response from a Generate RPC call.
type GenerateResult struct {
	Text    string
	Entropy float64
}

// ClientConfig holds connection-level settings.
type ClientConfig struct {
	Timeout time.Duration // per-call deadline; zero leaves the caller's context alone
	Options GenerateOptions
}

// DefaultClientConfig returns settings suited to short hint completions.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout: 20 * time.Second,
		Options: GenerateOptions{MaxTokens: 120, Temperature: 0.4},
	}
}

// #endregion types

// #region client-struct
// CodecClient wraps the gRPC connection to the local inference service.
type CodecClient struct {
	conn   *grpc.ClientConn
	cc     grpc.ClientConnInterface
	config ClientConfig
}

// #endregion client-struct

// #region constructor
// NewCodecClient connects to the inference gRPC server.
func NewCodecClient(addr string, config ClientConfig) (*CodecClient, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &CodecClient{conn: conn, cc: conn, config: config}, nil
}

// NewCodecClientWithConn creates a CodecClient over an existing connection.
// Used for testing against an in-process server.
func NewCodecClientWithConn(cc grpc.ClientConnInterface, config ClientConfig) *CodecClient {
	return &CodecClient{cc: cc, config: config}
}

// #endregion constructor

// #region close
// Close shuts down the gRPC connection if this client owns it.
func (c *CodecClient) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// #endregion close

// #region generate
// Generate sends a prompt with the default options and returns the text.
func (c *CodecClient) Generate(ctx context.Context, prompt string) (string, error) {
	res, err := c.GenerateWithOptions(ctx, prompt, c.config.Options)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// GenerateWithOptions sends a prompt to the inference service.
func (c *CodecClient) GenerateWithOptions(ctx context.Context, prompt string, opts GenerateOptions) (GenerateResult, error) {
	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	fields := map[string]interface{}{"prompt": prompt}
	if opts.Model != "" {
		fields["model"] = opts.Model
	}
	if opts.MaxTokens > 0 {
		fields["max_tokens"] = opts.MaxTokens
	}
	if opts.Temperature > 0 {
		fields["temperature"] = opts.Temperature
	}
	req, err := structpb.NewStruct(fields)
	if err != nil {
		return GenerateResult{}, fmt.Errorf("build generate request: %w", err)
	}

	resp := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, generateMethod, req, resp); err != nil {
		return GenerateResult{}, fmt.Errorf("generate rpc: %w", err)
	}

	textVal, ok := resp.GetFields()["text"]
	if !ok {
		return GenerateResult{}, fmt.Errorf("generate rpc: response missing text field")
	}
	if _, isString := textVal.GetKind().(*structpb.Value_StringValue); !isString {
		return GenerateResult{}, fmt.Errorf("generate rpc: text field is not a string")
	}
	return GenerateResult{
		Text:    textVal.GetStringValue(),
		Entropy: resp.GetFields()["entropy"].GetNumberValue(),
	}, nil
}

// #endregion generate
