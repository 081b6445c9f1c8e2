package safefetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateURL_RejectsNonHTTPScheme(t *testing.T) {
	u, err := url.Parse("file:///etc/passwd")
	require.NoError(t, err)
	err = ValidateURL(u)
	require.Error(t, err)
	var be *BlockedError
	assert.ErrorAs(t, err, &be)
}

func TestValidateURL_RejectsLoopbackLiteral(t *testing.T) {
	u, err := url.Parse("http://127.0.0.1/")
	require.NoError(t, err)
	err = ValidateURL(u)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "private/internal")
}

func TestValidateURL_RejectsLinkLocalMetadataAddress(t *testing.T) {
	u, err := url.Parse("http://169.254.169.254/latest/meta-data")
	require.NoError(t, err)
	err = ValidateURL(u)
	require.Error(t, err)
}

func TestValidateURL_RejectsLocalhostHostname(t *testing.T) {
	u, err := url.Parse("http://localhost:8080/")
	require.NoError(t, err)
	err = ValidateURL(u)
	require.Error(t, err)
}

func TestValidateURL_RejectsDangerousSuffix(t *testing.T) {
	u, err := url.Parse("http://service.internal/")
	require.NoError(t, err)
	err = ValidateURL(u)
	require.Error(t, err)
}

func TestValidateURL_AllowsPublicIPLiteral(t *testing.T) {
	u, err := url.Parse("http://8.8.8.8/")
	require.NoError(t, err)
	assert.NoError(t, ValidateURL(u))
}

// TestFetch_BlocksPrivateAddressWithoutOutboundRequest is S5's first
// scenario: calling with http://127.0.0.1/ must fail before any
// network I/O and surface a private-address error.
func TestFetch_BlocksPrivateAddressWithoutOutboundRequest(t *testing.T) {
	client := New()
	_, err := client.Fetch(context.Background(), "http://127.0.0.1/")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "private/internal")
}

// TestCheckRedirect_BlocksUnsafeRedirectTarget is S5's second scenario:
// a redirect Location pointing at a private/link-local address must be
// blocked by CheckRedirect even when the originating request was
// allowed through.
func TestCheckRedirect_BlocksUnsafeRedirectTarget(t *testing.T) {
	client := New()
	req, err := http.NewRequest(http.MethodGet, "http://169.254.169.254/latest/meta-data", nil)
	require.NoError(t, err)

	err = client.httpClient.CheckRedirect(req, nil)
	require.Error(t, err)
}

func TestFetch_CapsResponseSize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, MaxResponseBytes+10)
		w.Write(buf)
	}))
	defer srv.Close()

	client := NewForTesting()
	_, err := client.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds")
}

func TestFetch_SucceedsForSafePublicURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	client := NewForTesting()
	body, err := client.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))
}
