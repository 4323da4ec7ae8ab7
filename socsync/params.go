package socsync

import (
	"encoding/json"
	"time"
)

// ExtractCredentials is the per-extract Exporta Dados access pair stored in
// CompanyPrincipal.ExtractKeysJSON.
type ExtractCredentials struct {
	Code int    `json:"code"`
	Key  string `json:"key"`
}

// extractKeys is the shape of CompanyPrincipal.ExtractKeysJSON.
type extractKeys struct {
	ExamRequests ExtractCredentials `json:"exam_requests"`
}

// DecodeExamRequestCredentials pulls the pedidoExame credentials out of a
// company principal's credential blob.
func DecodeExamRequestCredentials(raw []byte) (ExtractCredentials, error) {
	var keys extractKeys
	if err := json.Unmarshal(raw, &keys); err != nil {
		return ExtractCredentials{}, err
	}
	return keys.ExamRequests, nil
}

// pedidoExameParams is the parameter object serialized into the SOAP call's
// parametros field. Optional filters are omitted entirely when unset, never
// sent as null; the vendor rejects null keys. Dates go as dd/mm/yyyy.
type pedidoExameParams struct {
	Empresa           int    `json:"empresa"`
	Codigo            int    `json:"codigo"`
	Chave             string `json:"chave"`
	TipoSaida         string `json:"tipoSaida"`
	ParamSequencial   bool   `json:"paramSequencial"`
	SequenciaFicha    *int   `json:"sequenciaFicha,omitempty"`
	FuncionarioInicio int    `json:"funcionarioInicio"`
	FuncionarioFim    int    `json:"funcionarioFim"`
	ParamData         bool   `json:"paramData"`
	DataInicio        string `json:"dataInicio"`
	DataFim           string `json:"dataFim"`
	ParamFunc         bool   `json:"paramFunc"`
	ParamPresta       bool   `json:"paramPresta"`
	ParamUnidade      bool   `json:"paramUnidade"`
}

// buildPedidoExameParams encodes the date-ranged extract request for one
// employer.
func buildPedidoExameParams(employerCode int, creds ExtractCredentials, start, end time.Time) (string, error) {
	params := pedidoExameParams{
		Empresa:           employerCode,
		Codigo:            creds.Code,
		Chave:             creds.Key,
		TipoSaida:         "json",
		FuncionarioInicio: 0,
		FuncionarioFim:    999999999,
		ParamData:         true,
		DataInicio:        start.Format(vendorDateLayout),
		DataFim:           end.Format(vendorDateLayout),
	}

	encoded, err := json.Marshal(params)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}
