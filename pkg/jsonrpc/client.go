package jsonrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/theapemachine/a2a-runtime/pkg/a2a"
	"github.com/theapemachine/a2a-runtime/pkg/sse"
)

type RPCClient struct {
	URL    string
	Client *http.Client
}

func NewRPCClient(url string) *RPCClient {
	return &RPCClient{
		URL:    url,
		Client: &http.Client{},
	}
}

/*
Call performs a single request. A JSON-RPC error in the response is returned
as the *errors.RpcError it carries.
*/
func (c *RPCClient) Call(
	ctx context.Context,
	method string,
	params any,
	result any,
) error {
	resp, err := c.post(ctx, method, params, "application/json")

	if err != nil {
		return err
	}

	defer resp.Body.Close()

	var rpcResp rawResponse

	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("failed to decode response (status %d): %w", resp.StatusCode, err)
	}

	if rpcResp.Error != nil {
		return rpcResp.Error
	}

	if result != nil && len(rpcResp.Result) > 0 {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("failed to decode result: %w", err)
		}
	}

	return nil
}

/*
Stream performs a streaming request and calls handler for every event until
the final one, the server closes the stream, or handler returns an error.
*/
func (c *RPCClient) Stream(
	ctx context.Context,
	method string,
	params any,
	handler func(a2a.Event) error,
) error {
	resp, err := c.post(ctx, method, params, "text/event-stream")

	if err != nil {
		return err
	}

	defer resp.Body.Close()

	// Errors raised before the stream starts come back as plain JSON.
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream") {
		var rpcResp rawResponse

		if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
			return fmt.Errorf("failed to decode response (status %d): %w", resp.StatusCode, err)
		}

		if rpcResp.Error != nil {
			return rpcResp.Error
		}

		return fmt.Errorf("expected an event stream, got %q", resp.Header.Get("Content-Type"))
	}

	reader := sse.NewReader(resp.Body)

	for {
		event, err := reader.Next()

		if err == io.EOF {
			return nil
		}

		if err != nil {
			return err
		}

		var rpcResp rawResponse

		if err := json.Unmarshal(event.Data, &rpcResp); err != nil {
			return fmt.Errorf("failed to decode stream message: %w", err)
		}

		if rpcResp.Error != nil {
			return rpcResp.Error
		}

		evt, err := a2a.ParseEvent(rpcResp.Result)

		if err != nil {
			return err
		}

		if err := handler(evt); err != nil {
			return err
		}

		if evt.IsFinal() {
			return nil
		}
	}
}

func (c *RPCClient) post(
	ctx context.Context, method string, params any, accept string,
) (*http.Response, error) {
	if c.Client == nil {
		c.Client = http.DefaultClient
	}

	id, err := json.Marshal(uuid.NewString())

	if err != nil {
		return nil, err
	}

	payload := RPCRequest{
		JSONRPC: Version,
		ID:      id,
		Method:  method,
	}

	if params != nil {
		b, err := json.Marshal(params)

		if err != nil {
			return nil, err
		}

		payload.Params = b
	}

	body, err := json.Marshal(payload)

	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))

	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", accept)

	return c.Client.Do(httpReq)
}
