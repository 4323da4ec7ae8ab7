package socsync

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func testClient(endpoint string) *SocClient {
	return &SocClient{
		endpoint: endpoint,
		username: "user",
		password: "pass",
		http:     &http.Client{Timeout: 5 * time.Second},
		now:      func() time.Time { return time.Date(2024, time.June, 10, 12, 0, 0, 0, time.UTC) },
	}
}

func vendorResponse(retorno string) string {
	return `<?xml version="1.0"?>
<S:Envelope xmlns:S="http://schemas.xmlsoap.org/soap/envelope/">
  <S:Body>
    <ns2:exportaDadosWsResponse xmlns:ns2="http://services.soc.age.com/">
      <return>
        <erro>false</erro>
        <retorno>` + retorno + `</retorno>
      </return>
    </ns2:exportaDadosWsResponse>
  </S:Body>
</S:Envelope>`
}

func TestSocClientFetch(t *testing.T) {
	var receivedBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		receivedBody = string(b)
		w.Write([]byte(vendorResponse(`[{"SEQUENCIAFICHA":"1000","CODIGOEMPRESA":"321"}]`)))
	}))
	defer srv.Close()

	lines, err := testClient(srv.URL).Fetch(context.Background(), 321, ExtractCredentials{Code: 1, Key: "k"},
		day(2024, time.June, 1), day(2024, time.June, 30))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(lines) != 1 || lines[0].SequenceID != "1000" {
		t.Fatalf("lines = %+v", lines)
	}

	for _, want := range []string{"tns:exportaDados", "wsse:UsernameToken", "<parametros>"} {
		if !strings.Contains(receivedBody, want) {
			t.Errorf("request body missing %q", want)
		}
	}
}

func TestSocClientFetchEmptyRetorno(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(vendorResponse("")))
	}))
	defer srv.Close()

	lines, err := testClient(srv.URL).Fetch(context.Background(), 321, ExtractCredentials{},
		day(2024, time.June, 1), day(2024, time.June, 30))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if lines != nil {
		t.Fatalf("empty retorno must yield no lines, got %+v", lines)
	}
}

func TestSocClientFetchVendorError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<e><erro>true</erro><mensagemErro>Chave invalida</mensagemErro></e>`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Fetch(context.Background(), 321, ExtractCredentials{},
		day(2024, time.June, 1), day(2024, time.June, 30))

	var vendorErr *VendorError
	if !errors.As(err, &vendorErr) {
		t.Fatalf("err = %v, want VendorError", err)
	}
	if vendorErr.Message != "Chave invalida" {
		t.Fatalf("message = %q", vendorErr.Message)
	}
	if retryableError(err) {
		t.Fatal("vendor errors must not be retryable")
	}
}

func TestSocClientFetchHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Fetch(context.Background(), 321, ExtractCredentials{},
		day(2024, time.June, 1), day(2024, time.June, 30))

	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("err = %v, want TransportError", err)
	}
	if !retryableError(err) {
		t.Fatal("transport errors must be retryable")
	}
}

func TestSocClientFetchGarbageBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<ok></ok>"))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Fetch(context.Background(), 321, ExtractCredentials{},
		day(2024, time.June, 1), day(2024, time.June, 30))

	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("err = %v, want ParseError", err)
	}
}
