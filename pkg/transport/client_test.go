package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func acceptedBody(conf string) string {
	return `<EfileResponse><Status>accepted</Status><ConfirmationNumber>` + conf + `</ConfirmationNumber></EfileResponse>`
}

func rejectedBody(code, detail string) string {
	return `<EfileResponse><Status>rejected</Status><ErrorCode>` + code + `</ErrorCode><Detail>` + detail + `</Detail></EfileResponse>`
}

func newTestClient(srv *httptest.Server, timeout time.Duration) *Client {
	cfg := DefaultClientConfig(srv.URL)
	if timeout > 0 {
		cfg.Timeout = timeout
	}
	return NewClient(cfg)
}

func TestClient_PostAccepted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.Header.Get("Content-Type"), "application/xml")
		w.Write([]byte(acceptedBody("ABC123")))
	}))
	defer srv.Close()

	resp, err := newTestClient(srv, 0).Post(context.Background(), []byte("<T619Transmission/>"))
	require.NoError(t, err)
	assert.True(t, resp.Accepted)
	assert.Equal(t, "ABC123", resp.ConfirmationID)
}

func TestClient_PostRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(rejectedBody("30022", "transmitter number invalid")))
	}))
	defer srv.Close()

	_, err := newTestClient(srv, 0).Post(context.Background(), []byte("<T619Transmission/>"))
	var rej *RejectionError
	require.True(t, errors.As(err, &rej))
	assert.Equal(t, "30022", rej.Code)
	assert.Equal(t, "transmitter number invalid", rej.Detail)
}

func TestClient_PostRejectedViaHTTPStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("bad envelope"))
	}))
	defer srv.Close()

	_, err := newTestClient(srv, 0).Post(context.Background(), []byte("<T619Transmission/>"))
	var rej *RejectionError
	require.True(t, errors.As(err, &rej))
	assert.Equal(t, "HTTP-400", rej.Code)
}

func TestClient_PostServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(srv, 0).Post(context.Background(), []byte("<T619Transmission/>"))
	var tr *TransmitError
	require.True(t, errors.As(err, &tr))
	assert.False(t, tr.Timeout)
}

func TestClient_PostTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	_, err := newTestClient(srv, 50*time.Millisecond).Post(context.Background(), []byte("<T619Transmission/>"))
	var tr *TransmitError
	require.True(t, errors.As(err, &tr))
	assert.True(t, tr.Timeout)
}

func TestClient_PostConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := newTestClient(srv, 0).Post(context.Background(), []byte("<T619Transmission/>"))
	var tr *TransmitError
	require.True(t, errors.As(err, &tr))
}

func TestClient_PostMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<EfileResponse><Status>weird</Status></EfileResponse>"))
	}))
	defer srv.Close()

	_, err := newTestClient(srv, 0).Post(context.Background(), []byte("<T619Transmission/>"))
	var tr *TransmitError
	require.True(t, errors.As(err, &tr))
	assert.Contains(t, err.Error(), "unknown response status")
}

func TestMaskIdentifiers(t *testing.T) {
	assert.Equal(t, "sin ***-***-6789 refused", maskIdentifiers("sin 123456789 refused"))
	assert.Equal(t, "sin ***-***-6789 refused", maskIdentifiers("sin 123-456-789 refused"))
	assert.Equal(t, "sin ***-***-6789 refused", maskIdentifiers("sin 123 456 789 refused"))
	assert.Equal(t, "code 30022", maskIdentifiers("code 30022"))
}
