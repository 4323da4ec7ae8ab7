package socsync

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

// ExtractClient fetches the raw exam-request extract for one employer and
// date range. An empty extract is a normal outcome, not an error.
type ExtractClient interface {
	Fetch(ctx context.Context, employerCode int, creds ExtractCredentials, start, end time.Time) ([]RawExamLine, error)
}

// SocClient talks to the SOC Exporta Dados web service over SOAP.
type SocClient struct {
	endpoint string
	username string
	password string
	http     *http.Client
	now      func() time.Time
}

func NewSocClient() *SocClient {
	endpoint := strings.TrimSpace(os.Getenv("SOC_WS_ENDPOINT"))
	if endpoint == "" {
		endpoint = "https://ws1.soc.com.br/WSoc/ExportaDadosWs"
	}

	timeout := 60 * time.Second
	if v := strings.TrimSpace(os.Getenv("SOC_WS_TIMEOUT_SECONDS")); v != "" {
		if n, err := time.ParseDuration(v + "s"); err == nil && n > 0 {
			timeout = n
		}
	}

	return &SocClient{
		endpoint: endpoint,
		username: os.Getenv("SOC_WS_USERNAME"),
		password: os.Getenv("SOC_WS_PASSWORD"),
		http:     &http.Client{Timeout: timeout},
		now:      time.Now,
	}
}

// Fetch performs one exportaDados call. Failures map onto the package error
// taxonomy so the run orchestrator can tell retryable transport faults from
// permanent vendor rejections.
func (c *SocClient) Fetch(ctx context.Context, employerCode int, creds ExtractCredentials, start, end time.Time) ([]RawExamLine, error) {
	params, err := buildPedidoExameParams(employerCode, creds, start, end)
	if err != nil {
		return nil, &ParseError{Op: "encode params", Err: err}
	}

	security := createWSSecurityHeader(c.username, c.password, c.now())
	envelope, err := buildExportaDadosEnvelope(params, security)
	if err != nil {
		return nil, &ParseError{Op: "build envelope", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(envelope))
	if err != nil {
		return nil, &TransportError{Op: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "post", Err: err}
	}
	defer resp.Body.Close()

	body, err := decodeVendorBody(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: "read body", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &TransportError{Op: "post", Err: fmt.Errorf("status %d: %s", resp.StatusCode, truncateForLog(body))}
	}

	result, err := parseExportaDadosResponse(body)
	if err != nil {
		return nil, err
	}
	if result.Erro {
		return nil, &VendorError{Message: result.MensagemErro}
	}

	retorno := strings.TrimSpace(result.Retorno)
	if retorno == "" {
		return nil, nil
	}

	var lines []RawExamLine
	if err := json.Unmarshal([]byte(retorno), &lines); err != nil {
		return nil, &ParseError{Op: "decode retorno", Err: err}
	}
	return lines, nil
}

func truncateForLog(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 512 {
		return s[:512]
	}
	return s
}
