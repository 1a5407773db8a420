package importer

import (
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/aclindsa/ofxgo"

	"github.com/beanflow/beanflow/internal/model"
)

// OFXParser parses OFX/QFX exports via ofxgo, with preprocessing for the
// malformed SGML files banks produce in practice.
type OFXParser struct{}

// Format returns the parser name.
func (p *OFXParser) Format() string { return "ofx" }

var (
	severityRe = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	openTagRe  = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
)

// preprocessOFX fixes common formatting issues in OFX files: leading blank
// lines before the header, mixed-case SEVERITY values, and SGML opening tags
// missing their closing bracket.
func (p *OFXParser) preprocessOFX(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")
	content = severityRe.ReplaceAllStringFunc(content, strings.ToUpper)
	content = openTagRe.ReplaceAllString(content, "$1>")
	return content
}

// Parse reads an OFX/QFX file and returns raw records from all bank and
// credit card statements it contains.
func (p *OFXParser) Parse(r io.Reader) ([]model.RawRecord, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading OFX file: %w", err)
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(p.preprocessOFX(string(content))))
	if err != nil {
		return nil, fmt.Errorf("parsing OFX file: %w", err)
	}

	var records []model.RawRecord

	for _, msg := range resp.Bank {
		stmt, ok := msg.(*ofxgo.StatementResponse)
		if !ok || stmt.BankTranList == nil {
			continue
		}
		records = append(records, p.convertTransactions(stmt.BankTranList.Transactions, stmt.CurDef.String())...)
	}

	for _, msg := range resp.CreditCard {
		stmt, ok := msg.(*ofxgo.CCStatementResponse)
		if !ok || stmt.BankTranList == nil {
			continue
		}
		records = append(records, p.convertTransactions(stmt.BankTranList.Transactions, stmt.CurDef.String())...)
	}

	slog.Debug("Parsed OFX file", "records", len(records))
	return records, nil
}

func (p *OFXParser) convertTransactions(txns []ofxgo.Transaction, currency string) []model.RawRecord {
	records := make([]model.RawRecord, 0, len(txns))
	for _, tx := range txns {
		records = append(records, model.RawRecord{
			Date:      tx.DtPosted.Time.Format("2006-01-02"),
			Amount:    tx.TrnAmt.FloatString(2),
			Currency:  currency,
			Payee:     ofxPayee(tx),
			Narration: strings.TrimSpace(string(tx.Name)),
			Fields: map[string]string{
				"fitid": string(tx.FiTID),
				"type":  tx.TrnType.String(),
				"memo":  string(tx.Memo),
			},
		})
	}
	return records
}

// ofxPayee prefers the structured PAYEE block over the free-form NAME field.
func ofxPayee(tx ofxgo.Transaction) string {
	if tx.Payee != nil && tx.Payee.Name != "" {
		return strings.TrimSpace(string(tx.Payee.Name))
	}
	return ""
}
