package gateway

import (
	"context"
	"encoding/hex"
)

type vmQueryRequest struct {
	ScAddress string   `json:"scAddress"`
	FuncName  string   `json:"funcName"`
	Args      []string `json:"args"`
}

type vmQueryResponse struct {
	Data struct {
		ReturnData    []string `json:"returnData"`
		ReturnCode    string   `json:"returnCode"`
		ReturnMessage string   `json:"returnMessage"`
	} `json:"data"`
}

// VMQuery runs a read-only smart contract function and returns its base64
// encoded return values. args must already be hex encoded. A function
// that returns nothing yields nil.
func (c *Client) VMQuery(ctx context.Context, scAddress, funcName string, args []string) ([]string, error) {
	if args == nil {
		args = []string{}
	}
	var resp vmQueryResponse
	err := c.Post(ctx, "vm-values/query", vmQueryRequest{ScAddress: scAddress, FuncName: funcName, Args: args}, &resp)
	if err != nil {
		return nil, err
	}
	if len(resp.Data.ReturnData) == 0 {
		return nil, nil
	}
	return resp.Data.ReturnData, nil
}

// HexArg encodes a string argument for VMQuery
func HexArg(value string) string {
	return hex.EncodeToString([]byte(value))
}
