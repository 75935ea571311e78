package importer_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nonsonwune/censo_db/errors"
	"github.com/nonsonwune/censo_db/importer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIBGEClient(t *testing.T, url string) *importer.IBGEClient {
	t.Helper()
	c, err := importer.NewIBGEClient(importer.IBGEOptions{
		BaseURL:      url,
		Timeout:      2 * time.Second,
		Attempts:     3,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: 5 * time.Millisecond,
		Logger:       discardLogger(),
	})
	require.NoError(t, err)
	return c
}

func TestIBGEFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/localidades/municipios", r.URL.Path)
		assert.Equal(t, "nome", r.URL.Query().Get("orderBy"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte("[" + municipioJSON + "]"))
	}))
	defer srv.Close()

	c := newIBGEClient(t, srv.URL+"/api/v1/localidades")
	records, err := c.Fetch(context.Background(), "municipios")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, json.Number("1100015"), records[0]["id"])
	assert.Equal(t, "Norte", records[0]["microrregiao.mesorregiao.UF.regiao.nome"])
	assert.Equal(t, "Cacoal", records[0]["regiao-imediata.nome"])
}

func TestIBGEFetchRetries(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`[{"id": 12, "sigla": "AC", "nome": "Acre", "regiao": {"id": 1, "sigla": "N", "nome": "Norte"}}]`))
	}))
	defer srv.Close()

	records, err := newIBGEClient(t, srv.URL).Fetch(context.Background(), "estados")
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestIBGEFetchErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		code   errors.Code
		hits   int32
	}{
		{name: "server error", status: http.StatusInternalServerError, code: errors.ErrNetwork, hits: 3},
		{name: "not found", status: http.StatusNotFound, code: errors.ErrNetwork, hits: 1},
		{name: "not an array", status: http.StatusOK, body: `{"erro": "x"}`, code: errors.ErrDecode, hits: 1},
		{name: "truncated", status: http.StatusOK, body: `[{"id": 1`, code: errors.ErrDecode, hits: 1},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var hits int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&hits, 1)
				w.WriteHeader(test.status)
				w.Write([]byte(test.body))
			}))
			defer srv.Close()

			_, err := newIBGEClient(t, srv.URL).Fetch(context.Background(), "estados")
			require.Error(t, err)
			assert.True(t, errors.Is(err, test.code), err.Error())
			assert.Equal(t, test.hits, atomic.LoadInt32(&hits))
		})
	}
}

func TestIBGEFetchUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newIBGEClient(t, url).Fetch(context.Background(), "estados")
	assert.True(t, errors.Is(err, errors.ErrNetwork))
}

func TestIBGEURL(t *testing.T) {
	c := newIBGEClient(t, "https://servicodados.ibge.gov.br/api/v1/localidades/")
	assert.Equal(t, "https://servicodados.ibge.gov.br/api/v1/localidades/mesorregioes?orderBy=nome", c.URL("mesorregioes"))
}
