package extract

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"ventasbi/internal/model"
)

// CSVExtractor reads every *.csv in a directory. One file per channel: the
// file name stem (upper-cased) is the channel code. Store exports are messy —
// the header row moves around, encodings vary and column names drift — so the
// reader detects all three instead of assuming them.
type CSVExtractor struct {
	dir string
}

func NewCSVExtractor(dir string) *CSVExtractor {
	return &CSVExtractor{dir: dir}
}

// column roles detected by fuzzy header matching.
type columnMap struct {
	article     int
	description int
	category    int
	quantity    int
	unitPrice   int
	amount      int
	date        int
}

// maxHeaderRow is how deep into a file the header row is searched for.
// Exports often carry a title and a blank row above the real header.
const maxHeaderRow = 4

// Summary rows poison the Pareto ranking and double the totals; they are
// dropped at extraction, never consolidated.
var totalPatterns = []string{"TOTAL", "SUBTOTAL", "GRAND TOTAL", "GRAN TOTAL", "TOTAL GENERAL"}

func (e *CSVExtractor) Extract(_ context.Context) (*Dataset, error) {
	paths, err := filepath.Glob(filepath.Join(e.dir, "*.csv"))
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("extract: sin archivos CSV en %s", e.dir)
	}
	sort.Strings(paths)

	ds := &Dataset{}
	articleSeen := make(map[string]bool)

	for _, path := range paths {
		channel := strings.ToUpper(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
		lines, err := e.readFile(path, channel, ds, articleSeen)
		if err != nil {
			return nil, fmt.Errorf("extract: %s: %w", filepath.Base(path), err)
		}
		ds.Lines = append(ds.Lines, lines...)
		ds.Channels = append(ds.Channels, model.ChannelDimension{Code: channel, Type: channelType(channel)})
		log.Info().Str("archivo", filepath.Base(path)).Str("canal", channel).Int("lineas", len(lines)).Msg("archivo extraido")
	}
	return ds, nil
}

func (e *CSVExtractor) readFile(path, channel string, ds *Dataset, articleSeen map[string]bool) ([]model.TransactionLine, error) {
	records, err := readRecords(path)
	if err != nil {
		return nil, err
	}

	headerRow, cols, ok := detectHeader(records)
	if !ok {
		return nil, fmt.Errorf("no se encontro una fila de encabezado reconocible")
	}

	var lines []model.TransactionLine
	for _, rec := range records[headerRow+1:] {
		line, ok := parseLine(rec, cols, channel)
		if !ok {
			continue
		}
		if isSummaryRow(cell(rec, cols.article)) || isSummaryRow(cell(rec, cols.description)) {
			continue
		}
		lines = append(lines, line)

		// First sighting of an article seeds the dimension row; later lines
		// only contribute amounts.
		if !articleSeen[line.Article] {
			articleSeen[line.Article] = true
			ds.Articles = append(ds.Articles, model.ArticleDimension{
				Code:        line.Article,
				Description: strings.TrimSpace(cell(rec, cols.description)),
				Category:    line.Category,
			})
		}
	}
	return lines, nil
}

// readRecords loads a CSV file, falling back from UTF-8 to Windows-1252 /
// Latin-1 for files exported by older registers.
func readRecords(path string) ([][]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(raw) {
		decoded, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), raw)
		if err != nil {
			decoded, _, err = transform.Bytes(charmap.ISO8859_1.NewDecoder(), raw)
			if err != nil {
				return nil, fmt.Errorf("codificacion no reconocida: %w", err)
			}
		}
		raw = decoded
	}

	r := csv.NewReader(bytes.NewReader(raw))
	r.FieldsPerRecord = -1 // header rows and title rows differ in width
	r.TrimLeadingSpace = true
	return r.ReadAll()
}

// detectHeader scans the first rows for the one that fuzzy-matches at least
// two known column roles, and returns the resolved column map.
func detectHeader(records [][]string) (int, columnMap, bool) {
	for row := 0; row < len(records) && row < maxHeaderRow; row++ {
		cols, matches := mapColumns(records[row])
		if matches >= 2 && cols.article >= 0 {
			return row, cols, true
		}
	}
	return 0, columnMap{}, false
}

// mapColumns assigns a role to each header cell by keyword. Accents are
// folded first so "Descripción" and "Descripcion" match the same rule.
func mapColumns(header []string) (columnMap, int) {
	cols := columnMap{article: -1, description: -1, category: -1, quantity: -1, unitPrice: -1, amount: -1, date: -1}
	matches := 0

	for i, h := range header {
		name := foldAccents(strings.ToLower(strings.TrimSpace(h)))
		switch {
		case cols.article < 0 && (strings.Contains(name, "art") || strings.Contains(name, "prod") ||
			strings.Contains(name, "codigo") || strings.Contains(name, "sku")):
			cols.article = i
		case cols.description < 0 && (strings.Contains(name, "desc") || strings.Contains(name, "nombre")):
			cols.description = i
		case cols.category < 0 && strings.Contains(name, "categ"):
			cols.category = i
		case cols.quantity < 0 && strings.Contains(name, "cant") && !strings.Contains(name, "total"):
			cols.quantity = i
		case cols.amount < 0 && ((strings.Contains(name, "total") && strings.Contains(name, "prec")) ||
			name == "total" || name == "importe"):
			cols.amount = i
		case cols.unitPrice < 0 && strings.Contains(name, "prec"):
			cols.unitPrice = i
		case cols.date < 0 && strings.Contains(name, "fecha"):
			cols.date = i
		default:
			continue
		}
		matches++
	}
	return cols, matches
}

func parseLine(rec []string, cols columnMap, channel string) (model.TransactionLine, bool) {
	article := strings.TrimSpace(cell(rec, cols.article))
	if article == "" {
		return model.TransactionLine{}, false
	}

	amount, okAmount := parseDecimal(cell(rec, cols.amount))
	unitPrice, _ := parseDecimal(cell(rec, cols.unitPrice))
	quantity := int(parseInt(cell(rec, cols.quantity)))

	// A line with no parsable amount is reconstructed from price × quantity;
	// with neither, it contributes nothing and is skipped.
	if !okAmount {
		if unitPrice.IsZero() || quantity == 0 {
			return model.TransactionLine{}, false
		}
		amount = unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
	}

	return model.TransactionLine{
		Article:   article,
		Channel:   channel,
		Category:  strings.TrimSpace(cell(rec, cols.category)),
		UnitPrice: unitPrice,
		Quantity:  quantity,
		Amount:    amount,
		Timestamp: parseDate(cell(rec, cols.date)),
	}, true
}

func cell(rec []string, idx int) string {
	if idx < 0 || idx >= len(rec) {
		return ""
	}
	return rec[idx]
}

// parseDecimal accepts both "1234.56" and the Excel-Spanish "1.234,56".
func parseDecimal(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(strings.TrimPrefix(s, "$"))
	if s == "" {
		return decimal.Zero, false
	}
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func parseInt(s string) int64 {
	d, ok := parseDecimal(s)
	if !ok {
		return 0
	}
	return d.IntPart()
}

func parseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02", "02/01/2006", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func isSummaryRow(field string) bool {
	upper := strings.ToUpper(field)
	for _, p := range totalPatterns {
		if strings.Contains(upper, p) {
			return true
		}
	}
	return false
}

// foldAccents strips combining marks: á→a, é→e, ñ→n.
func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
