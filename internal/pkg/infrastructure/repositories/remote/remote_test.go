package remote

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/diwise/entity-binder/pkg/binding/client"
	testutils "github.com/diwise/service-chassis/pkg/test/http"
	"github.com/diwise/service-chassis/pkg/test/http/expects"
	"github.com/diwise/service-chassis/pkg/test/http/response"
	"github.com/matryer/is"
)

func TestListRequestsAllColumns(t *testing.T) {
	is := is.New(t)

	s := testutils.NewMockServiceThat(
		testutils.Expects(
			is,
			expects.RequestPath("/api/v1/DeviceModel"),
			expects.QueryParamEquals("columns", "id,name"),
		),
		testutils.Returns(
			response.ContentType("application/json"),
			response.Code(http.StatusOK),
			response.Body([]byte(`{"iTotalRecords":1,"iTotalDisplayRecords":1,"aaData":[["m1","ERS"]]}`)),
		),
	)
	defer s.Close()

	store := New(client.NewBinderClient(s.URL()), "DeviceModel", []string{"id", "name"})

	records, err := store.List(context.Background())
	is.NoErr(err)
	is.Equal(records, []map[string]string{{"id": "m1", "name": "ERS"}})
}

func TestRemoteRecordsAreReadOnly(t *testing.T) {
	is := is.New(t)

	store := New(client.NewBinderClient("http://localhost:1234"), "DeviceModel", []string{"id"})

	err := store.Save(context.Background(), "m1", map[string]string{"id": "m1"})
	is.True(errors.Is(err, ErrReadOnly))
}
