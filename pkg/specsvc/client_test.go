package specsvc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func soapResponse(result string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
  <soap:Body>
    <GetSpecValueResponse xmlns="http://tempuri.org/">
      <GetSpecValueResult>%s</GetSpecValueResult>
    </GetSpecValueResponse>
  </soap:Body>
</soap:Envelope>`, result)
}

func TestLookupARValue(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		_, _ = w.Write([]byte(soapResponse("3.5")))
	}))
	defer srv.Close()

	v, err := NewClient(srv.URL).LookupARValue(context.Background(), "A12345678901")
	require.NoError(t, err)
	assert.Equal(t, 3.5, v)

	// Long lots route to the inner-layer step.
	assert.Contains(t, gotBody, `"StepId":"7276"`)
	assert.Contains(t, gotBody, "內層Annual Ring")
}

func TestLookupARValue_ShortLotIsOuterLayer(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		_, _ = w.Write([]byte(soapResponse("2.1")))
	}))
	defer srv.Close()

	v, err := NewClient(srv.URL).LookupARValue(context.Background(), "A123456789")
	require.NoError(t, err)
	assert.Equal(t, 2.1, v)
	assert.Contains(t, gotBody, `"StepId":"9241"`)
	assert.Contains(t, gotBody, "外層Annual Ring")
}

func TestLookupARValue_JSONWrappedResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Some proxy versions wrap the scalar in JSON.
		payload, _ := json.Marshal(4.25)
		_, _ = w.Write([]byte(soapResponse(string(payload))))
	}))
	defer srv.Close()

	v, err := NewClient(srv.URL).LookupARValue(context.Background(), "A123456789")
	require.NoError(t, err)
	assert.Equal(t, 4.25, v)
}

func TestLookupARValue_EmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(soapResponse("")))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).LookupARValue(context.Background(), "A123456789")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty result")
}

func TestLookupARValue_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "soap fault", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).LookupARValue(context.Background(), "A123456789")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestLookupARValue_NonNumericResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(soapResponse("not-a-number")))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).LookupARValue(context.Background(), "A123456789")
	require.Error(t, err)
}

func TestLookupARValue_RequestShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.True(t, strings.Contains(string(body), "<GetSpecValue"))
		assert.True(t, strings.Contains(string(body), "<EAP_Json>"))
		assert.Equal(t, "text/xml;charset=UTF-8", r.Header.Get("Content-Type"))
		_, _ = w.Write([]byte(soapResponse("1")))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).LookupARValue(context.Background(), "A123456789")
	require.NoError(t, err)
}
