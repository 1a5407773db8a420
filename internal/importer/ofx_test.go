package importer

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleOFX = `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

<OFX>
<SIGNONMSGSRSV1>
<SONRS>
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<DTSERVER>20250315120000[0:GMT]
<LANGUAGE>ENG
</SONRS>
</SIGNONMSGSRSV1>
<BANKMSGSRSV1>
<STMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<STMTRS>
<CURDEF>USD
<BANKACCTFROM>
<BANKID>123456789
<ACCTID>1234567890
<ACCTTYPE>CHECKING
</BANKACCTFROM>
<BANKTRANLIST>
<DTSTART>20250101120000[0:GMT]
<DTEND>20250131120000[0:GMT]
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20250115120000[0:GMT]
<TRNAMT>-25.50
<FITID>2025011501
<NAME>STARBUCKS STORE #1234
</STMTTRN>
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20250120120000[0:GMT]
<TRNAMT>-125.00
<FITID>2025012001
<NAME>Whole Foods Market
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>1000.00
<DTASOF>20250131120000[0:GMT]
</LEDGERBAL>
</STMTRS>
</STMTTRNRS>
</BANKMSGSRSV1>
</OFX>`

func TestOFXParse(t *testing.T) {
	parser := &OFXParser{}
	records, err := parser.Parse(strings.NewReader(sampleOFX))
	require.NoError(t, err)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, "2025-01-15", first.Date)
	assert.Equal(t, "-25.50", first.Amount)
	assert.Equal(t, "USD", first.Currency)
	assert.Equal(t, "STARBUCKS STORE #1234", first.Narration)
	assert.Equal(t, "2025011501", first.Fields["fitid"])
}

func TestOFXParseThroughImporter(t *testing.T) {
	imp, err := New(Source{
		Name:    "chase-ofx",
		Format:  "ofx",
		Account: "Assets:Checking:Chase",
	}, DefaultRegistry())
	require.NoError(t, err)

	candidates, recErrs, err := imp.Extract(context.Background(), strings.NewReader(sampleOFX))
	require.NoError(t, err)
	require.Empty(t, recErrs)
	require.Len(t, candidates, 2)

	assert.Equal(t, "-125 USD", candidates[1].Entry.Postings[0].Amount.String())
	assert.True(t, candidates[1].Entry.Postings[1].IsMissing())
}

func TestOFXPreprocessFixesSGML(t *testing.T) {
	parser := &OFXParser{}

	// Mixed-case severity and a leading blank line are repaired before parse.
	mangled := "\n" + strings.Replace(sampleOFX, "<SEVERITY>INFO", "<SEVERITY>Info</SEVERITY>", 1)
	fixed := parser.preprocessOFX(mangled)
	assert.False(t, strings.HasPrefix(fixed, "\n"))
	assert.Contains(t, fixed, "<SEVERITY>INFO</SEVERITY>")
}

func TestOFXParseGarbage(t *testing.T) {
	parser := &OFXParser{}
	_, err := parser.Parse(strings.NewReader("this is not ofx"))
	assert.Error(t, err)
}
