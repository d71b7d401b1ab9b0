package jsonrpc

import (
	"encoding/json"

	"github.com/theapemachine/a2a-runtime/pkg/errors"
)

const Version = "2.0"

type RPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"` // accepts string | number | null
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the request expects no response.
func (req *RPCRequest) IsNotification() bool {
	return len(req.ID) == 0
}

type RPCResponse struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      json.RawMessage  `json:"id"`
	Result  any              `json:"result,omitempty"`
	Error   *errors.RpcError `json:"error,omitempty"`
}

/*
rawResponse is the client-side view of a response, keeping the result
undecoded until the caller says what it should be.
*/
type rawResponse struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      json.RawMessage  `json:"id"`
	Result  json.RawMessage  `json:"result,omitempty"`
	Error   *errors.RpcError `json:"error,omitempty"`
}

func newResult(id json.RawMessage, result any) RPCResponse {
	return RPCResponse{
		JSONRPC: Version,
		ID:      nullID(id),
		Result:  result,
	}
}

func newErrorResponse(id json.RawMessage, err error) RPCResponse {
	rpcErr := errors.FromError(err)

	if rpcErr == nil {
		rpcErr = errors.ErrInternal
	}

	return RPCResponse{
		JSONRPC: Version,
		ID:      nullID(id),
		Error:   rpcErr,
	}
}

func nullID(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return json.RawMessage("null")
	}

	return id
}
