// Package importer turns delimited text files into normalised candidate
// transactions. It performs no storage access; reconciliation against the
// ledger happens in the services package.
package importer

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Field is one of the canonical columns the importer understands.
type Field string

const (
	FieldType           Field = "type"
	FieldDate           Field = "date"
	FieldPeriod         Field = "period"
	FieldDescription    Field = "description"
	FieldAmount         Field = "amount"
	FieldCategory       Field = "category"
	FieldClassification Field = "classification"
	FieldCurrency       Field = "currency"
	FieldSource         Field = "source"
	FieldRecurrence     Field = "recurrence"
)

// CanonicalFields lists the canonical columns in export order.
var CanonicalFields = []Field{
	FieldType, FieldDate, FieldPeriod, FieldDescription, FieldAmount,
	FieldCategory, FieldClassification, FieldCurrency, FieldSource, FieldRecurrence,
}

// headerAliases maps normalised header text to canonical fields.
var headerAliases = map[string]Field{
	"type": FieldType, "tipo": FieldType, "kind": FieldType, "natureza": FieldType,
	"transaction type": FieldType, "tipo de transacao": FieldType, "tipo lancamento": FieldType,

	"date": FieldDate, "data": FieldDate, "dia": FieldDate, "transaction date": FieldDate,
	"data da transacao": FieldDate, "data lancamento": FieldDate, "data de pagamento": FieldDate,

	"period": FieldPeriod, "periodo": FieldPeriod, "month": FieldPeriod, "mes": FieldPeriod,
	"competencia": FieldPeriod, "mes referencia": FieldPeriod, "reference month": FieldPeriod,

	"description": FieldDescription, "descricao": FieldDescription, "desc": FieldDescription,
	"historico": FieldDescription, "memo": FieldDescription, "details": FieldDescription,
	"detalhes": FieldDescription, "name": FieldDescription, "nome": FieldDescription,

	"amount": FieldAmount, "valor": FieldAmount, "value": FieldAmount, "total": FieldAmount,
	"montante": FieldAmount, "quantia": FieldAmount, "price": FieldAmount, "preco": FieldAmount,

	"category": FieldCategory, "categoria": FieldCategory, "category name": FieldCategory,

	"classification": FieldClassification, "classificacao": FieldClassification,
	"category kind": FieldClassification, "category type": FieldClassification,
	"tipo de categoria": FieldClassification, "grupo": FieldClassification, "group": FieldClassification,

	"currency": FieldCurrency, "moeda": FieldCurrency, "ccy": FieldCurrency,

	"source": FieldSource, "fonte": FieldSource, "origem": FieldSource, "origin": FieldSource,
	"account": FieldSource, "conta": FieldSource, "banco": FieldSource, "bank": FieldSource,

	"recurrence": FieldRecurrence, "recorrencia": FieldRecurrence, "recurring": FieldRecurrence,
	"frequencia": FieldRecurrence, "frequency": FieldRecurrence, "repeticao": FieldRecurrence,
}

// Normalize lower-cases s, strips diacritics and turns punctuation into
// single spaces: "Descrição (R$)" -> "descricao r".
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	stripped = strings.ToLower(stripped)

	var b strings.Builder
	space := false
	for _, r := range stripped {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
			continue
		}
		space = true
	}
	return b.String()
}

// CanonicalField maps a raw header to its canonical field.
func CanonicalField(header string) (Field, bool) {
	f, ok := headerAliases[Normalize(strings.TrimPrefix(header, "\ufeff"))]
	return f, ok
}

// columnMap records, for each canonical field, the input columns that alias
// to it in file order.
type columnMap map[Field][]int

func mapHeader(headers []string) columnMap {
	cols := make(columnMap)
	for i, h := range headers {
		if f, ok := CanonicalField(h); ok {
			cols[f] = append(cols[f], i)
		}
	}
	return cols
}

// value returns the first non-empty cell among the columns mapped to f.
func (c columnMap) value(record []string, f Field) string {
	for _, i := range c[f] {
		if i < len(record) {
			if v := strings.TrimSpace(record[i]); v != "" {
				return v
			}
		}
	}
	return ""
}

// DetectDelimiter picks ';' when the header line has more semicolons than
// commas, otherwise ','.
func DetectDelimiter(headerLine string) rune {
	if strings.Count(headerLine, ";") > strings.Count(headerLine, ",") {
		return ';'
	}
	return ','
}
