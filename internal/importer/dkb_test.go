package importer

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dkbCSV = `"Girokonto";"DE02120300000000202051"
"";""
"Kontostand vom 31.01.2025:";"1.234,56 EUR"
"Buchungsdatum";"Wertstellung";"Status";"Zahlungspflichtige*r";"Zahlungsempfänger*in";"Verwendungszweck";"Umsatztyp";"IBAN";"Betrag (€)";"Gläubiger-ID";"Mandatsreferenz";"Kundenreferenz"
"03.01.2025";"03.01.2025";"Gebucht";"MAX MUSTERMANN";"REWE Markt GmbH";"REWE SAGT  DANKE 44";"Lastschrift";"DE11111111111111111111";"-45,67";"DE98ZZZ09999999999";"M-1";"REF-1"
"07.01.2025";"07.01.2025";"Gebucht";"MAX MUSTERMANN";"Stadtwerke";"Abschlag Strom";"Lastschrift";"DE22222222222222222222";"-1.100,00";"";"";""
"";"";"";"";"";"";"";"";"";"";"";""
`

func TestDKBParse(t *testing.T) {
	parser := &DKBParser{}
	records, err := parser.Parse(strings.NewReader(dkbCSV))
	require.NoError(t, err)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, "03.01.2025", first.Date)
	assert.Equal(t, "-45.67", first.Amount)
	assert.Equal(t, "EUR", first.Currency)
	assert.Equal(t, "REWE Markt GmbH", first.Payee)
	// Extra spaces inside cells are collapsed.
	assert.Contains(t, first.Narration, "Verwendungszweck: REWE SAGT DANKE 44")
	assert.Contains(t, first.Narration, "Kundenreferenz: REF-1")

	// Decimal comma with thousands separator.
	assert.Equal(t, "-1100.00", records[1].Amount)
}

func TestDKBParseThroughImporter(t *testing.T) {
	imp, err := New(Source{
		Name:    "dkb-giro",
		Format:  "dkb",
		Account: "Assets:Checking:DKB",
	}, DefaultRegistry())
	require.NoError(t, err)

	candidates, recErrs, err := imp.Extract(context.Background(), strings.NewReader(dkbCSV))
	require.NoError(t, err)
	require.Empty(t, recErrs)
	require.Len(t, candidates, 2)

	assert.Equal(t, "2025-01-03", candidates[0].Entry.Date.Format("2006-01-02"))
	assert.Equal(t, "-45.67 EUR", candidates[0].Entry.Postings[0].Amount.String())
}

func TestDKBParseMissingHeader(t *testing.T) {
	parser := &DKBParser{}
	_, err := parser.Parse(strings.NewReader("just;some;cells\n"))
	assert.Error(t, err)
}
