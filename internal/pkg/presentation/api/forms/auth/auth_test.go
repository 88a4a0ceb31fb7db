package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/matryer/is"
)

func TestAccessIsGrantedForReadsByAnyone(t *testing.T) {
	is, a := testSetup(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/Device/d1", nil)

	is.NoErr(a.CheckAccess(context.Background(), req, "Device", nil))
}

func TestWritesRequireAToken(t *testing.T) {
	is, a := testSetup(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/Device", nil)

	err := a.CheckAccess(context.Background(), req, "Device", []string{"name"})
	is.True(errors.Is(err, ErrNotAuthorized))

	req.Header.Add("Authorization", "Bearer letmein")
	is.NoErr(a.CheckAccess(context.Background(), req, "Device", []string{"name"}))
}

func TestPolicyCanRestrictFields(t *testing.T) {
	is, a := testSetup(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/Device", nil)
	req.Header.Add("Authorization", "Bearer letmein")

	err := a.CheckAccess(context.Background(), req, "Device", []string{"name", "secret"})
	is.True(errors.Is(err, ErrNotAuthorized))
}

func testSetup(t *testing.T) (*is.I, Enticator) {
	is := is.New(t)

	a, err := NewAuthenticator(context.Background(), strings.NewReader(policies))
	is.NoErr(err)

	return is, a
}

const policies string = `
package example.authz

default allow := false

allow = response {
	input.method == "GET"
	response := {"mapper": input.mapper}
}

allow = response {
	input.method == "POST"
	input.token == "letmein"
	not restricted_field
	response := {"mapper": input.mapper}
}

restricted_field {
	input.fields[_] == "secret"
}
`
