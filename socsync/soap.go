package socsync

import (
	"bytes"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"io"
	"time"
	"unicode/utf8"

	"github.com/beevik/etree"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

const (
	wsseNamespace = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-secext-1.0.xsd"
	wsuNamespace  = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-utility-1.0.xsd"
	socNamespace  = "http://services.soc.age.com/"

	passwordDigestType = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-username-token-profile-1.0#PasswordDigest"
	nonceEncodingType  = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-soap-message-security-1.0#Base64Binary"
)

func generateNonce() string {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(nonce)
}

func createPasswordDigest(nonce, created, password string) string {
	nonceBytes, _ := base64.StdEncoding.DecodeString(nonce)
	combined := append(nonceBytes, []byte(created+password)...)
	hash := sha1.Sum(combined)
	return base64.StdEncoding.EncodeToString(hash[:])
}

// createWSSecurityHeader builds the UsernameToken header the SOC web service
// requires: SHA-1 password digest over nonce + created timestamp.
func createWSSecurityHeader(username, password string, now time.Time) *etree.Element {
	nonce := generateNonce()
	created := now.UTC().Format("2006-01-02T15:04:05Z")
	digest := createPasswordDigest(nonce, created, password)

	security := etree.NewElement("wsse:Security")
	security.CreateAttr("xmlns:wsse", wsseNamespace)
	security.CreateAttr("xmlns:wsu", wsuNamespace)

	timestamp := security.CreateElement("wsu:Timestamp")
	timestamp.CreateAttr("wsu:Id", "Timestamp-"+created)
	timestamp.CreateElement("wsu:Created").SetText(created)
	timestamp.CreateElement("wsu:Expires").SetText(now.UTC().Add(10 * time.Minute).Format("2006-01-02T15:04:05Z"))

	token := security.CreateElement("wsse:UsernameToken")
	token.CreateAttr("xmlns:wsu", wsuNamespace)
	token.CreateAttr("wsu:Id", "SecurityToken-"+created)
	token.CreateElement("wsse:Username").SetText(username)

	pass := token.CreateElement("wsse:Password")
	pass.CreateAttr("Type", passwordDigestType)
	pass.SetText(digest)

	nonceElem := token.CreateElement("wsse:Nonce")
	nonceElem.CreateAttr("EncodingType", nonceEncodingType)
	nonceElem.SetText(nonce)

	token.CreateElement("wsu:Created").SetText(created)

	return security
}

// buildExportaDadosEnvelope wraps the parameter JSON in the exportaDados
// SOAP call. The erro tag is only meaningful in responses but the schema
// marks it required, so it is sent as false.
func buildExportaDadosEnvelope(params string, security *etree.Element) (string, error) {
	doc := etree.NewDocument()
	envelope := doc.CreateElement("soap:Envelope")
	envelope.CreateAttr("xmlns:soap", "http://schemas.xmlsoap.org/soap/envelope/")
	envelope.CreateAttr("xmlns:xsi", "http://www.w3.org/2001/XMLSchema-instance")
	envelope.CreateAttr("xmlns:tns", socNamespace)

	header := envelope.CreateElement("soap:Header")
	if security != nil {
		header.AddChild(security)
	}

	body := envelope.CreateElement("soap:Body")
	call := body.CreateElement("tns:exportaDados")
	arg := call.CreateElement("arg0")
	arg.CreateElement("parametros").SetText(params)
	arg.CreateElement("erro").SetText("false")

	doc.Indent(2)
	xmlString, err := doc.WriteToString()
	if err != nil {
		return "", err
	}
	return `<?xml version="1.0" encoding="utf-8"?>` + "\n" + xmlString, nil
}

// exportaDadosResult is the decoded exportaDadosResponse payload.
type exportaDadosResult struct {
	Erro         bool
	MensagemErro string
	Retorno      string
}

// parseExportaDadosResponse walks the response envelope for the erro,
// mensagemErro and retorno tags. The element path varies with the server's
// namespace prefixes, so tags are matched by local name.
func parseExportaDadosResponse(body []byte) (exportaDadosResult, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(body); err != nil {
		return exportaDadosResult{}, &ParseError{Op: "read envelope", Err: err}
	}

	var result exportaDadosResult
	var found bool
	for _, elem := range doc.FindElements("//*") {
		switch elem.Tag {
		case "erro":
			result.Erro = elem.Text() == "true"
			found = true
		case "mensagemErro":
			result.MensagemErro = elem.Text()
		case "retorno":
			result.Retorno = elem.Text()
			found = true
		}
	}
	if !found {
		return exportaDadosResult{}, &ParseError{Op: "read envelope", Err: errMissingResponseTags}
	}
	return result, nil
}

// decodeVendorBody converts the vendor's ISO-8859-1 responses to UTF-8.
// Bodies that already validate as UTF-8 pass through; otherwise the charset
// is sniffed with a fallback to Latin-1.
func decodeVendorBody(body io.Reader) ([]byte, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	if utf8.Valid(raw) {
		return raw, nil
	}

	utf8Reader, err := charset.NewReader(bytes.NewReader(raw), "")
	if err != nil {
		utf8Reader = transform.NewReader(bytes.NewReader(raw), charmap.ISO8859_1.NewDecoder())
	}
	return io.ReadAll(utf8Reader)
}
