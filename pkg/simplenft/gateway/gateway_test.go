package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-nft/pkg/simplenft"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL + "/")
}

func TestGet_DecodesEnvelope(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/network/esdt/fungible-tokens", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":{"tokens":["WEGLD-bd4d79","MEX-455c57"]},"error":"","code":"successful"}`))
	})

	var out struct {
		Tokens []string `json:"tokens"`
	}
	found, err := client.Get(context.Background(), "network/esdt/fungible-tokens", &out, nil)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []string{"WEGLD-bd4d79", "MEX-455c57"}, out.Tokens)
}

func TestGet_NotFoundMessage(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"data":null,"error":"getESDTBalance error: account was not found","code":"internal_issue"}`))
	})

	var out map[string]any
	found, err := client.Get(context.Background(), "address/erd1x/esdt", &out, AccountNotFound)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, out)
}

func TestGet_UpstreamError(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"data":null,"error":"node unreachable","code":"internal_issue"}`))
	})

	_, err := client.Get(context.Background(), "address/erd1x/esdt", nil, AccountNotFound)
	require.Error(t, err)
	assert.ErrorIs(t, err, simplenft.ErrUpstreamUnavailable)

	var upstream *simplenft.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, http.StatusBadGateway, upstream.StatusCode)
	assert.Equal(t, "node unreachable", upstream.Message)
}

func TestGet_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := New(srv.URL).Get(context.Background(), "network/config", nil, nil)
	assert.ErrorIs(t, err, simplenft.ErrUpstreamUnavailable)
}

func TestVMQuery(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/vm-values/query", r.URL.Path)

		var req vmQueryRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "erd1contract", req.ScAddress)
		assert.Equal(t, "getTokenProperties", req.FuncName)
		assert.Equal(t, []string{HexArg("WEGLD-bd4d79")}, req.Args)

		_, _ = w.Write([]byte(`{"data":{"data":{"returnData":["V3JhcHBlZEVHTEQ=","RnVuZ2libGVFU0RU"],"returnCode":"ok"}},"code":"successful"}`))
	})

	values, err := client.VMQuery(context.Background(), "erd1contract", "getTokenProperties", []string{HexArg("WEGLD-bd4d79")})
	require.NoError(t, err)
	assert.Equal(t, []string{"V3JhcHBlZEVHTEQ=", "RnVuZ2libGVFU0RU"}, values)
}

func TestVMQuery_EmptyReturnData(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"data":{"returnData":null,"returnCode":"user error"}},"code":"successful"}`))
	})

	values, err := client.VMQuery(context.Background(), "erd1contract", "getTokenProperties", nil)
	require.NoError(t, err)
	assert.Nil(t, values)
}

func TestHexArg(t *testing.T) {
	assert.Equal(t, "4142432d313233", HexArg("ABC-123"))
}
