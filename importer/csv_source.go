package importer

import (
	"bufio"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/nonsonwune/censo_db/errors"
	"github.com/nonsonwune/censo_db/schema"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

const (
	DefaultBatchSize = 1000
	DefaultEncoding  = "latin1"
	DefaultDelimiter = ';'
)

// CSVOptions describes the physical format of a CSV source.
type CSVOptions struct {
	Encoding  string
	Delimiter rune
}

func (o CSVOptions) withDefaults() CSVOptions {
	if o.Encoding == "" {
		o.Encoding = DefaultEncoding
	}
	if o.Delimiter == 0 {
		o.Delimiter = DefaultDelimiter
	}
	return o
}

var partitionRe = regexp.MustCompile(`(?:^|\D)(\d{4})\.[^.]+$`)

// PartitionYear extracts the census year from a file name such as
// microdados_ed_basica_2023.csv: the four digits right before the extension.
func PartitionYear(path string) (int, error) {
	m := partitionRe.FindStringSubmatch(filepath.Base(path))
	if m == nil {
		return 0, errors.Newf(errors.ErrUnresolvedPartition, "no census year in file name %s", filepath.Base(path))
	}
	year, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, errors.WithCodef(err, errors.ErrUnresolvedPartition, "parsing year of %s", path)
	}
	return year, nil
}

// CSVSource streams one census CSV file through a projection, stamping every
// row with the year taken from the file name.
type CSVSource struct {
	Path string
	Year int

	projection Projection
	opts       CSVOptions
	text       *textDecoder
}

// OpenCSV checks that path exists and carries a year, and prepares the
// decoder for the declared encoding. Nothing is read yet.
func OpenCSV(path string, p Projection, opts CSVOptions) (*CSVSource, error) {
	opts = opts.withDefaults()
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Newf(errors.ErrSourceNotFound, "file not found: %s", path)
		}
		return nil, errors.WithCodef(err, errors.ErrSourceNotFound, "stat %s", path)
	}
	year, err := PartitionYear(path)
	if err != nil {
		return nil, err
	}
	text, err := newTextDecoder(opts.Encoding)
	if err != nil {
		return nil, err
	}
	return &CSVSource{Path: path, Year: year, projection: p, opts: opts, text: text}, nil
}

// Each reads the file and calls fn with consecutive batches of at most
// batchSize projected rows. The RecordSet passed to fn is not reused. It
// returns the number of rows handed to successful fn calls.
func (s *CSVSource) Each(batchSize int, fn func(*RecordSet) error) (int, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	f, err := os.Open(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, errors.Newf(errors.ErrSourceNotFound, "file not found: %s", s.Path)
		}
		return 0, errors.WithCodef(err, errors.ErrSourceNotFound, "opening %s", s.Path)
	}
	defer f.Close()

	reader := csv.NewReader(bufio.NewReaderSize(f, 1<<20))
	reader.Comma = s.opts.Delimiter
	reader.LazyQuotes = true
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err == io.EOF {
		return 0, errors.Newf(errors.ErrSchemaMismatch, "%s: empty file", s.Path)
	}
	if err != nil {
		return 0, errors.WithCodef(err, errors.ErrDecode, "%s: reading header", s.Path)
	}
	names := make([]string, len(header))
	for i, h := range header {
		if names[i], err = s.text.field(h); err != nil {
			return 0, errors.Wrapf(err, "%s: header", s.Path)
		}
	}
	if len(names) > 0 {
		names[0] = strings.TrimPrefix(names[0], "\ufeff")
	}
	bound, err := s.projection.bind(names)
	if err != nil {
		return 0, errors.Wrap(err, s.Path)
	}

	columns := append(append([]string{}, bound.columns...), schema.ColAno)
	year := int64(s.Year)
	newBatch := func() *RecordSet {
		return &RecordSet{Columns: columns, Rows: make([][]interface{}, 0, batchSize)}
	}

	total := 0
	batch := newBatch()
	for {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return total, errors.WithCodef(err, errors.ErrDecode, "%s", s.Path)
		}
		line, _ := reader.FieldPos(0)

		row := bound.row(fields, 1)
		for j := range row {
			v, err := s.text.field(row[j].(string))
			if err != nil {
				return total, errors.Wrapf(err, "%s: line %d, column %s", s.Path, line, columns[j])
			}
			row[j] = v
		}
		batch.Rows = append(batch.Rows, append(row, year))

		if len(batch.Rows) == batchSize {
			if err := fn(batch); err != nil {
				return total, err
			}
			total += len(batch.Rows)
			batch = newBatch()
		}
	}
	if len(batch.Rows) > 0 {
		if err := fn(batch); err != nil {
			return total, err
		}
		total += len(batch.Rows)
	}
	return total, nil
}

// LoadCSV reads a whole census file into memory and returns its year and
// the projected rows. Large files should go through CSVSource.Each instead.
func LoadCSV(path string, p Projection, opts CSVOptions) (int, *RecordSet, error) {
	src, err := OpenCSV(path, p, opts)
	if err != nil {
		return 0, nil, err
	}
	var out *RecordSet
	_, err = src.Each(DefaultBatchSize, func(rs *RecordSet) error {
		if out == nil {
			out = &RecordSet{Columns: rs.Columns}
		}
		out.Rows = append(out.Rows, rs.Rows...)
		return nil
	})
	if err != nil {
		return 0, nil, err
	}
	if out == nil {
		out = &RecordSet{Columns: append(p.Targets(), schema.ColAno)}
	}
	return src.Year, out, nil
}

// textDecoder converts cells from the declared encoding to UTF-8 and
// refuses text that the declared encoding evidently does not describe.
type textDecoder struct {
	name string
	dec  *encoding.Decoder
}

var charsets = map[string]encoding.Encoding{
	"latin1":       charmap.ISO8859_1,
	"latin-1":      charmap.ISO8859_1,
	"iso-8859-1":   charmap.ISO8859_1,
	"iso8859-1":    charmap.ISO8859_1,
	"latin9":       charmap.ISO8859_15,
	"iso-8859-15":  charmap.ISO8859_15,
	"windows-1252": charmap.Windows1252,
	"cp1252":       charmap.Windows1252,
	"utf-8":        nil,
	"utf8":         nil,
}

// SupportedEncoding reports whether name is a known CSV encoding.
func SupportedEncoding(name string) bool {
	_, ok := charsets[strings.ToLower(name)]
	return ok
}

func newTextDecoder(name string) (*textDecoder, error) {
	enc, ok := charsets[strings.ToLower(name)]
	if !ok {
		return nil, errors.Newf(errors.ErrDecode, "unsupported encoding %q", name)
	}
	td := &textDecoder{name: name}
	if enc != nil {
		td.dec = enc.NewDecoder()
	}
	return td, nil
}

func (d *textDecoder) field(s string) (string, error) {
	if isASCII(s) {
		return s, nil
	}
	if d.dec == nil {
		if !utf8.ValidString(s) {
			return "", errors.Newf(errors.ErrDecode, "invalid UTF-8 in %q", s)
		}
		return s, nil
	}
	// Valid multi-byte UTF-8 almost never occurs in single-byte Portuguese
	// text; it means the file was exported as UTF-8.
	if utf8.ValidString(s) {
		return "", errors.Newf(errors.ErrDecode, "%q is UTF-8, not %s", s, d.name)
	}
	out, err := d.dec.String(s)
	if err != nil {
		return "", errors.WithCodef(err, errors.ErrDecode, "decoding %s", d.name)
	}
	for _, r := range out {
		if r == utf8.RuneError || (r >= 0x80 && r <= 0x9f) {
			return "", errors.Newf(errors.ErrDecode, "byte sequence %q has no %s character", s, d.name)
		}
	}
	return out, nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
