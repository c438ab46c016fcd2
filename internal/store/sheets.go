package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/dvloznov/mailspend/internal/config"
	"github.com/dvloznov/mailspend/internal/domain"
)

// Tab and range layout of the remote spreadsheet. The Configuration tab
// holds four side-by-side column blocks; Transactions is a flat 9-column
// table keyed by its Created At column.
const (
	tabTransactions  = "Transactions"
	tabConfiguration = "Configuration"

	rangeTransactions    = tabTransactions + "!A2:I"
	rangeCategories      = tabConfiguration + "!A2:E"
	rangePaymentMethods  = tabConfiguration + "!G2:L"
	rangeKeywords        = tabConfiguration + "!N2:P"
	rangeApprovedSenders = tabConfiguration + "!R2:S"
)

// transactionHeaders is the schema a user-selected sheet must match exactly.
var transactionHeaders = []string{
	"Date", "Merchant", "Amount", "Category", "Payment Method",
	"Type", "Status", "Notes", "Created At",
}

var (
	categoryHeaders      = []string{"ID", "Name", "Icon", "Color", "Description"}
	paymentMethodHeaders = []string{"ID", "Name", "Icon", "Color", "Type", "Last4"}
	keywordHeaders       = []string{"ID", "Text", "Category"}
	senderHeaders        = []string{"Sender", "Approval"}
)

// configurationHeaderBlocks pairs each Configuration header range with the
// row it must contain, in the order Validate requests them.
var configurationHeaderBlocks = []struct {
	readRange string
	want      []string
}{
	{tabConfiguration + "!A1:E1", categoryHeaders},
	{tabConfiguration + "!G1:L1", paymentMethodHeaders},
	{tabConfiguration + "!N1:P1", keywordHeaders},
	{tabConfiguration + "!R1:S1", senderHeaders},
}

// SheetsBackend persists collections in a Google spreadsheet. Writes go
// straight to the API with no local durability; the caching decorator is
// responsible for keeping reads available offline.
type SheetsBackend struct {
	svc *sheets.Service
	id  string
	log zerolog.Logger
}

// NewSheetsBackend builds a Sheets client from configuration. With no
// credentials file configured it falls back to Application Default
// Credentials.
func NewSheetsBackend(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*SheetsBackend, error) {
	opts := []option.ClientOption{option.WithScopes(sheets.SpreadsheetsScope)}
	if cfg.GoogleCredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.GoogleCredentialsFile))
	}
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("store: sheets client: %w", err)
	}
	return &SheetsBackend{svc: svc, id: cfg.SpreadsheetID, log: log}, nil
}

// Validate checks that the configured spreadsheet has both expected tabs
// and that the Transactions header row matches the schema exactly. It runs
// before any state is persisted so an incompatible selection is rejected
// up front.
func (b *SheetsBackend) Validate(ctx context.Context) error {
	meta, err := b.svc.Spreadsheets.Get(b.id).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("store: inspect spreadsheet: %w", err)
	}
	tabs := map[string]bool{}
	for _, sh := range meta.Sheets {
		if sh.Properties != nil {
			tabs[sh.Properties.Title] = true
		}
	}
	if !tabs[tabTransactions] || !tabs[tabConfiguration] {
		return fmt.Errorf("%w: missing %q or %q tab", ErrIncompatibleSheet, tabTransactions, tabConfiguration)
	}

	resp, err := b.svc.Spreadsheets.Values.Get(b.id, tabTransactions+"!A1:I1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("store: read transaction headers: %w", err)
	}
	if len(resp.Values) == 0 || !headersMatch(resp.Values[0], transactionHeaders) {
		return fmt.Errorf("%w: transaction headers differ", ErrIncompatibleSheet)
	}

	ranges := make([]string, 0, len(configurationHeaderBlocks))
	for _, block := range configurationHeaderBlocks {
		ranges = append(ranges, block.readRange)
	}
	batch, err := b.svc.Spreadsheets.Values.BatchGet(b.id).Ranges(ranges...).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("store: read configuration headers: %w", err)
	}
	return checkConfigurationHeaders(batch.ValueRanges)
}

// checkConfigurationHeaders compares the batch-get results, returned in
// request order, against the four Configuration header blocks.
func checkConfigurationHeaders(got []*sheets.ValueRange) error {
	if len(got) != len(configurationHeaderBlocks) {
		return fmt.Errorf("%w: configuration header blocks missing", ErrIncompatibleSheet)
	}
	for i, block := range configurationHeaderBlocks {
		if got[i] == nil || len(got[i].Values) == 0 || !headersMatch(got[i].Values[0], block.want) {
			return fmt.Errorf("%w: configuration headers differ at %s", ErrIncompatibleSheet, block.readRange)
		}
	}
	return nil
}

func headersMatch(row []interface{}, want []string) bool {
	if len(row) != len(want) {
		return false
	}
	for i, cell := range row {
		if cellString(cell) != want[i] {
			return false
		}
	}
	return true
}

// Create provisions a fresh spreadsheet with both tabs, header rows, and
// default reference data, returning its ID.
func (b *SheetsBackend) Create(ctx context.Context) (string, error) {
	ss, err := b.svc.Spreadsheets.Create(&sheets.Spreadsheet{
		Properties: &sheets.SpreadsheetProperties{Title: "Mailspend Expenses"},
		Sheets: []*sheets.Sheet{
			{Properties: &sheets.SheetProperties{Title: tabTransactions}},
			{Properties: &sheets.SheetProperties{Title: tabConfiguration}},
		},
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("store: create spreadsheet: %w", err)
	}
	b.id = ss.SpreadsheetId

	headerData := []*sheets.ValueRange{
		{Range: tabTransactions + "!A1", Values: [][]interface{}{toRow(transactionHeaders)}},
		{Range: tabConfiguration + "!A1", Values: [][]interface{}{toRow(categoryHeaders)}},
		{Range: tabConfiguration + "!G1", Values: [][]interface{}{toRow(paymentMethodHeaders)}},
		{Range: tabConfiguration + "!N1", Values: [][]interface{}{toRow(keywordHeaders)}},
		{Range: tabConfiguration + "!R1", Values: [][]interface{}{toRow(senderHeaders)}},
	}
	_, err = b.svc.Spreadsheets.Values.BatchUpdate(b.id, &sheets.BatchUpdateValuesRequest{
		ValueInputOption: "RAW",
		Data:             headerData,
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("store: write headers: %w", err)
	}

	if err := b.PutCategories(ctx, domain.DefaultCategories()); err != nil {
		return "", err
	}
	if err := b.PutPaymentMethods(ctx, domain.DefaultPaymentMethods()); err != nil {
		return "", err
	}
	return b.id, nil
}

// Transactions reads the full transaction table. Rows that fail to parse
// are skipped with a warning rather than failing the whole read.
func (b *SheetsBackend) Transactions(ctx context.Context) ([]domain.Transaction, error) {
	rows, err := b.read(ctx, rangeTransactions)
	if err != nil {
		return nil, err
	}
	txs := make([]domain.Transaction, 0, len(rows))
	for i, row := range rows {
		tx, err := transactionFromRow(row)
		if err != nil {
			b.log.Warn().Err(err).Int("row", i+2).Msg("Skipping malformed transaction row")
			continue
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

func (b *SheetsBackend) PutTransactions(ctx context.Context, txs []domain.Transaction) error {
	values := make([][]interface{}, 0, len(txs))
	for _, tx := range txs {
		values = append(values, transactionToRow(tx))
	}
	return b.rewrite(ctx, rangeTransactions, values)
}

func (b *SheetsBackend) AppendTransaction(ctx context.Context, tx domain.Transaction) error {
	_, err := b.svc.Spreadsheets.Values.Append(b.id, rangeTransactions, &sheets.ValueRange{
		Values: [][]interface{}{transactionToRow(tx)},
	}).ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("store: append transaction: %w", err)
	}
	return nil
}

func (b *SheetsBackend) UpdateTransaction(ctx context.Context, tx domain.Transaction) error {
	txs, err := b.Transactions(ctx)
	if err != nil {
		return err
	}
	for i := range txs {
		if txs[i].ID == tx.ID {
			txs[i] = tx
			return b.PutTransactions(ctx, txs)
		}
	}
	return fmt.Errorf("store: update transaction %s: %w", tx.ID, ErrNotFound)
}

func (b *SheetsBackend) DeleteTransaction(ctx context.Context, id string) error {
	txs, err := b.Transactions(ctx)
	if err != nil {
		return err
	}
	kept := txs[:0]
	found := false
	for _, t := range txs {
		if t.ID == id {
			found = true
			continue
		}
		kept = append(kept, t)
	}
	if !found {
		return fmt.Errorf("store: delete transaction %s: %w", id, ErrNotFound)
	}
	return b.PutTransactions(ctx, kept)
}

func (b *SheetsBackend) Categories(ctx context.Context) ([]domain.Category, error) {
	rows, err := b.read(ctx, rangeCategories)
	if err != nil {
		return nil, err
	}
	cats := make([]domain.Category, 0, len(rows))
	for _, row := range rows {
		cats = append(cats, domain.Category{
			ID:          cell(row, 0),
			Name:        cell(row, 1),
			Icon:        cell(row, 2),
			Color:       cell(row, 3),
			Description: cell(row, 4),
		})
	}
	return cats, nil
}

func (b *SheetsBackend) PutCategories(ctx context.Context, cats []domain.Category) error {
	values := make([][]interface{}, 0, len(cats))
	for _, c := range cats {
		values = append(values, []interface{}{c.ID, c.Name, c.Icon, c.Color, c.Description})
	}
	return b.rewrite(ctx, rangeCategories, values)
}

func (b *SheetsBackend) PaymentMethods(ctx context.Context) ([]domain.PaymentMethod, error) {
	rows, err := b.read(ctx, rangePaymentMethods)
	if err != nil {
		return nil, err
	}
	pms := make([]domain.PaymentMethod, 0, len(rows))
	for _, row := range rows {
		pms = append(pms, domain.PaymentMethod{
			ID:    cell(row, 0),
			Name:  cell(row, 1),
			Icon:  cell(row, 2),
			Color: cell(row, 3),
			Type:  cell(row, 4),
			Last4: cell(row, 5),
		})
	}
	return pms, nil
}

func (b *SheetsBackend) PutPaymentMethods(ctx context.Context, pms []domain.PaymentMethod) error {
	values := make([][]interface{}, 0, len(pms))
	for _, pm := range pms {
		values = append(values, []interface{}{pm.ID, pm.Name, pm.Icon, pm.Color, pm.Type, pm.Last4})
	}
	return b.rewrite(ctx, rangePaymentMethods, values)
}

func (b *SheetsBackend) Keywords(ctx context.Context) ([]domain.Keyword, error) {
	rows, err := b.read(ctx, rangeKeywords)
	if err != nil {
		return nil, err
	}
	kws := make([]domain.Keyword, 0, len(rows))
	for _, row := range rows {
		kws = append(kws, domain.Keyword{
			ID:       cell(row, 0),
			Text:     cell(row, 1),
			Category: domain.TransactionType(cell(row, 2)),
		})
	}
	return kws, nil
}

func (b *SheetsBackend) PutKeywords(ctx context.Context, kws []domain.Keyword) error {
	values := make([][]interface{}, 0, len(kws))
	for _, kw := range kws {
		values = append(values, []interface{}{kw.ID, kw.Text, string(kw.Category)})
	}
	return b.rewrite(ctx, rangeKeywords, values)
}

func (b *SheetsBackend) ApprovedSenders(ctx context.Context) ([]domain.ApprovedSender, error) {
	rows, err := b.read(ctx, rangeApprovedSenders)
	if err != nil {
		return nil, err
	}
	senders := make([]domain.ApprovedSender, 0, len(rows))
	for _, row := range rows {
		sender := domain.ApprovedSender{Sender: cell(row, 0)}
		sender.Category, sender.PaymentMethod = splitApproval(cell(row, 1))
		senders = append(senders, sender)
	}
	return senders, nil
}

func (b *SheetsBackend) PutApprovedSenders(ctx context.Context, senders []domain.ApprovedSender) error {
	values := make([][]interface{}, 0, len(senders))
	for _, s := range senders {
		values = append(values, []interface{}{s.Sender, joinApproval(s.Category, s.PaymentMethod)})
	}
	return b.rewrite(ctx, rangeApprovedSenders, values)
}

func (b *SheetsBackend) AppendApprovedSender(ctx context.Context, sender domain.ApprovedSender) error {
	_, err := b.svc.Spreadsheets.Values.Append(b.id, rangeApprovedSenders, &sheets.ValueRange{
		Values: [][]interface{}{{sender.Sender, joinApproval(sender.Category, sender.PaymentMethod)}},
	}).ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("store: append approved sender: %w", err)
	}
	return nil
}

func (b *SheetsBackend) read(ctx context.Context, readRange string) ([][]interface{}, error) {
	resp, err := b.svc.Spreadsheets.Values.Get(b.id, readRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("store: read %s: %w", readRange, err)
	}
	return resp.Values, nil
}

// rewrite replaces the content of a range: clear, then write. The remote
// has no transactionality, so a crash between the two calls can lose rows;
// last-write-wins is the accepted model for this single-user store.
func (b *SheetsBackend) rewrite(ctx context.Context, writeRange string, values [][]interface{}) error {
	_, err := b.svc.Spreadsheets.Values.Clear(b.id, writeRange, &sheets.ClearValuesRequest{}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("store: clear %s: %w", writeRange, err)
	}
	if len(values) == 0 {
		return nil
	}
	start := strings.Split(writeRange, ":")[0]
	_, err = b.svc.Spreadsheets.Values.Update(b.id, start, &sheets.ValueRange{
		Values: values,
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("store: write %s: %w", writeRange, err)
	}
	return nil
}

// Row mapping. The sheet has no ID column; the ID is reconstructed from
// the Created At timestamp on every read.

func transactionToRow(tx domain.Transaction) []interface{} {
	return []interface{}{
		tx.OccurredAt.Format(domain.DayFormat),
		tx.Merchant,
		tx.Amount,
		tx.Category,
		tx.PaymentMethod,
		string(tx.Type),
		string(tx.Status),
		tx.Notes,
		tx.CreatedAt.Format(time.RFC3339Nano),
	}
}

func transactionFromRow(row []interface{}) (domain.Transaction, error) {
	if len(row) < 9 {
		return domain.Transaction{}, fmt.Errorf("row has %d cells, want 9", len(row))
	}
	occurred, err := time.Parse(domain.DayFormat, cell(row, 0))
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("bad date %q: %w", cell(row, 0), err)
	}
	created, err := time.Parse(time.RFC3339Nano, cell(row, 8))
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("bad created-at %q: %w", cell(row, 8), err)
	}
	return domain.Transaction{
		ID:            domain.TransactionID(created),
		Merchant:      cell(row, 1),
		Amount:        cell(row, 2),
		Category:      cell(row, 3),
		PaymentMethod: cell(row, 4),
		Type:          domain.TransactionType(cell(row, 5)),
		Status:        domain.TransactionStatus(cell(row, 6)),
		Notes:         cell(row, 7),
		OccurredAt:    occurred,
		CreatedAt:     created,
	}, nil
}

// The approved-senders block has two columns, so the remembered category
// and payment method share the second cell.
const approvalSep = " | "

func joinApproval(category, paymentMethod string) string {
	if paymentMethod == "" {
		return category
	}
	return category + approvalSep + paymentMethod
}

func splitApproval(s string) (category, paymentMethod string) {
	parts := strings.SplitN(s, approvalSep, 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return s, ""
}

func cell(row []interface{}, i int) string {
	if i >= len(row) {
		return ""
	}
	return cellString(row[i])
}

func cellString(v interface{}) string {
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprint(v)
}

func toRow(headers []string) []interface{} {
	row := make([]interface{}, len(headers))
	for i, h := range headers {
		row[i] = h
	}
	return row
}

var _ Backend = (*SheetsBackend)(nil)
