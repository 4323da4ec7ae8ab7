package socsync

import (
	"strconv"
	"strings"
	"time"
)

// RawExamLine is one line of the pedidoExame extract exactly as the vendor
// returns it: everything is a string, column names are vendor-native, one
// line per exam ordered on a ticket.
type RawExamLine struct {
	SequenceID    string `json:"SEQUENCIAFICHA"`
	EmployerCode  string `json:"CODIGOEMPRESA"`
	EmployeeCode  string `json:"CODIGOFUNCIONARIO"`
	EmployeeName  string `json:"NOMEFUNCIONARIO"`
	EmployeeTaxID string `json:"CPFFUNCIONARIO"`
	RequestDate   string `json:"DATAFICHA"`
	ExamTypeCode  string `json:"CODIGOTIPOEXAME"`
	ExamCode      string `json:"CODIGOINTERNOEXAME"`
	ClinicCode    string `json:"CODIGOPRESTADOR"`
	FacilityCode  string `json:"CODIGOUNIDADE"`
}

// ExtractLine is a normalized raw line: blanks dropped to zero values or
// nils, required numerics cast, request date parsed from dd/mm/yyyy.
type ExtractLine struct {
	SequenceID    int
	EmployerCode  int
	EmployeeCode  int
	EmployeeName  string
	EmployeeTaxID string
	RequestDate   *time.Time
	ExamTypeCode  int
	ExamCode      string
	ClinicCode    *int
	FacilityCode  string
}

const vendorDateLayout = "02/01/2006"

// NormalizeLines converts raw vendor lines into typed extract lines. A line
// whose required numerics (sequence id, employer code, employee code,
// exam-type code) cannot be cast, or whose request date is present but not
// dd/mm/yyyy, is dropped and counted in badRows; the rest of the batch
// proceeds. Blank optional fields (request date, clinic code) stay nil.
func NormalizeLines(raw []RawExamLine) (lines []ExtractLine, badRows int) {
	lines = make([]ExtractLine, 0, len(raw))
	for _, r := range raw {
		line, ok := normalizeLine(r)
		if !ok {
			badRows++
			continue
		}
		lines = append(lines, line)
	}
	return lines, badRows
}

func normalizeLine(r RawExamLine) (ExtractLine, bool) {
	seq, err := atoiTrim(r.SequenceID)
	if err != nil {
		return ExtractLine{}, false
	}
	employerCode, err := atoiTrim(r.EmployerCode)
	if err != nil {
		return ExtractLine{}, false
	}
	employeeCode, err := atoiTrim(r.EmployeeCode)
	if err != nil {
		return ExtractLine{}, false
	}
	examTypeCode, err := atoiTrim(r.ExamTypeCode)
	if err != nil {
		return ExtractLine{}, false
	}
	var requestDate *time.Time
	if raw := strings.TrimSpace(r.RequestDate); raw != "" {
		parsed, err := time.Parse(vendorDateLayout, raw)
		if err != nil {
			return ExtractLine{}, false
		}
		requestDate = &parsed
	}

	line := ExtractLine{
		SequenceID:    seq,
		EmployerCode:  employerCode,
		EmployeeCode:  employeeCode,
		EmployeeName:  strings.TrimSpace(r.EmployeeName),
		EmployeeTaxID: strings.TrimSpace(r.EmployeeTaxID),
		RequestDate:   requestDate,
		ExamTypeCode:  examTypeCode,
		ExamCode:      strings.TrimSpace(r.ExamCode),
		FacilityCode:  strings.TrimSpace(r.FacilityCode),
	}

	if clinicCode, err := atoiTrim(r.ClinicCode); err == nil {
		line.ClinicCode = &clinicCode
	}

	return line, true
}

func atoiTrim(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}
