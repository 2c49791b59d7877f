package elastic

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

func TestQuery_Body(t *testing.T) {
	body := NewQuery().
		WithMust(Match("address", "erd1abc")).
		WithPagination(0, 10000).
		Body()

	raw, err := json.Marshal(body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"from":0,"size":10000,"query":{"bool":{"must":[{"match":{"address":"erd1abc"}}]}}}`, string(raw))
}

func TestQuery_MatchAll(t *testing.T) {
	raw, err := json.Marshal(NewQuery().Body())
	require.NoError(t, err)
	assert.JSONEq(t, `{"from":0,"size":25,"query":{"match_all":{}}}`, string(raw))
}

func TestGetList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/accountsesdt/_search", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.EqualValues(t, 10000, body["size"])

		_, _ = w.Write([]byte(`{"hits":{"hits":[
			{"_id":"erd1abc-WEGLD-bd4d79","_source":{"token":"WEGLD-bd4d79","balance":"100"}},
			{"_id":"erd1abc-COL-abcd-01","_source":{"token":"COL-abcd","tokenNonce":1,"balance":"1"}}
		]}}`))
	}))
	defer srv.Close()

	docs, err := New(srv.URL).GetList(context.Background(), "accountsesdt", "identifier",
		NewQuery().WithMust(Match("address", "erd1abc")).WithPagination(0, 10000))
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "erd1abc-WEGLD-bd4d79", docs[0]["identifier"])
	assert.Equal(t, "WEGLD-bd4d79", docs[0]["token"])
	assert.EqualValues(t, 1, docs[1]["tokenNonce"])
}

func TestGetList_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := New(srv.URL).GetList(context.Background(), "accountsesdt", "identifier", NewQuery())
	assert.ErrorIs(t, err, simplenft.ErrUpstreamUnavailable)
}

func TestDecode(t *testing.T) {
	type esdt struct {
		Token   string `json:"token"`
		Balance string `json:"balance"`
	}
	value, err := Decode[esdt](Document{"token": "MEX-455c57", "balance": "5"})
	require.NoError(t, err)
	assert.Equal(t, esdt{Token: "MEX-455c57", Balance: "5"}, value)
}

func TestGetList_SourceFieldWinsOverID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"hits":{"hits":[{"_id":"doc-1","_source":{"identifier":"COL-abcd-01"}}]}}`))
	}))
	defer srv.Close()

	docs, err := New(srv.URL).GetList(context.Background(), "accountsesdt", "identifier", NewQuery())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "COL-abcd-01", docs[0]["identifier"])
}
