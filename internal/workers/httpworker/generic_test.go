package httpworker

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nianio/internal/ir"
	"github.com/roach88/nianio/internal/schema"
)

func TestWorker_RoundTrip(t *testing.T) {
	w := New()
	var mu sync.Mutex
	var urls []string

	// Answer every request with its own URL, as an application would.
	w.Factory()(func(cmd ir.Value) error {
		_, req, err := ir.Untag(cmd)
		require.NoError(t, err)
		fields := req.(ir.Object)

		mu.Lock()
		urls = append(urls, string(fields["Url"].(ir.String)))
		mu.Unlock()

		go w.Handle(ir.NewObject(
			ir.O("ConnectionId", fields["ConnectionId"]),
			ir.O("StatusCode", ir.Int(http.StatusCreated)),
			ir.O("Payload", ir.Object{"Echo": fields["Url"]}),
		))
		return nil
	})

	srv := httptest.NewServer(w.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/things/7?x=1")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.JSONEq(t, `{"Echo":"/things/7?x=1"}`, string(body))
	assert.Equal(t, []string{"/things/7?x=1"}, urls)
	assert.Equal(t, 0, w.Pending())
}

func TestWorker_UnknownConnection(t *testing.T) {
	w := New()
	var pushed []ir.Value
	w.Factory()(func(cmd ir.Value) error {
		pushed = append(pushed, cmd)
		return nil
	})

	w.Handle(ir.NewObject(
		ir.O("ConnectionId", ir.Int(99)),
		ir.O("StatusCode", ir.Int(200)),
		ir.O("Payload", ir.Null{}),
	))

	require.Len(t, pushed, 1)
	assert.Equal(t, ir.Tag("ConnectionIdDoesntExist", nil), pushed[0])
}

func TestWorker_Schemas(t *testing.T) {
	reg := schema.Registry{
		schema.StateType:   schema.Int(),
		schema.CommandType: schema.Variant(map[string]schema.Case{Name: schema.WithParam(CommandSchema())}),
		schema.EffectType:  schema.Variant(map[string]schema.Case{Name: schema.WithParam(EffectSchema(schema.String()))}),
	}
	require.NoError(t, reg.Validate())

	cmd := ir.Tag(Name, ir.Tag("NewRequest", ir.NewObject(
		ir.O("ConnectionId", ir.Int(0)),
		ir.O("Url", ir.String("/")),
	)))
	assert.NoError(t, schema.Verify(cmd, schema.CommandType, reg))
	assert.NoError(t, schema.Verify(ir.Tag(Name, ir.Tag("ConnectionIdDoesntExist", nil)), schema.CommandType, reg))

	effect := ir.Tag(Name, ir.NewObject(
		ir.O("ConnectionId", ir.Int(0)),
		ir.O("StatusCode", ir.Int(200)),
		ir.O("Payload", ir.String("ok")),
	))
	assert.NoError(t, schema.Verify(effect, schema.EffectType, reg))

	bad := ir.Tag(Name, ir.NewObject(
		ir.O("ConnectionId", ir.Int(0)),
		ir.O("StatusCode", ir.Int(200)),
		ir.O("Payload", ir.Int(1)),
	))
	assert.Error(t, schema.Verify(bad, schema.EffectType, reg))
}
