package importer

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/nonsonwune/censo_db/errors"
	"github.com/nonsonwune/censo_db/schema"
)

// Job is one independent unit of ingestion.
type Job interface {
	Name() string
	// Run loads the job's source and returns the committed row count, which
	// may be non-zero alongside an error.
	Run(ctx context.Context) (int, error)
}

// DuplicatePolicy decides what a census job does when its year is already
// present in the store.
type DuplicatePolicy string

const (
	// PolicyReject skips the file and leaves the stored year untouched.
	PolicyReject DuplicatePolicy = "reject"
	// PolicyReplace deletes the stored year before loading the file.
	PolicyReplace DuplicatePolicy = "replace"
	// PolicyAppend loads the file anyway, duplicating the year.
	PolicyAppend DuplicatePolicy = "append"
)

// ParseDuplicatePolicy validates a policy name.
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch p := DuplicatePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyReject, PolicyReplace, PolicyAppend:
		return p, nil
	case "":
		return PolicyReject, nil
	}
	return "", errors.Newf(errors.ErrValidation, "unknown duplicate year policy %q", s)
}

// CensusJob appends one yearly census CSV file to the institutions table.
type CensusJob struct {
	Path    string
	Options CSVOptions
	Policy  DuplicatePolicy
	Loader  *Loader
	Logger  *slog.Logger
}

func (j *CensusJob) Name() string {
	return "census:" + filepath.Base(j.Path)
}

func (j *CensusJob) Run(ctx context.Context) (int, error) {
	t := schema.Instituicoes
	src, err := OpenCSV(j.Path, TableProjection(t), j.Options)
	if err != nil {
		return 0, err
	}
	logger := j.logger().With("file", j.Path, "ano", src.Year)

	existing, err := j.Loader.CountPartition(ctx, t, schema.ColAno, src.Year)
	if err != nil {
		return 0, err
	}
	if existing > 0 {
		switch j.Policy {
		case PolicyReplace:
			deleted, err := j.Loader.DeletePartition(ctx, t, schema.ColAno, src.Year)
			if err != nil {
				return 0, err
			}
			logger.Warn("replacing census year", "deleted", deleted)
		case PolicyAppend:
			logger.Warn("census year already loaded, appending duplicates", "existing", existing)
		default:
			// A year left partial by a failed run lands here too; the reason
			// names the policy that reloads it.
			return 0, errors.Newf(errors.ErrConflict,
				"census year %d already loaded (%d rows); use the %q duplicate year policy to reload it",
				src.Year, existing, PolicyReplace)
		}
	}

	committed := 0
	_, err = src.Each(j.Loader.BatchSize(), func(rs *RecordSet) error {
		n, err := j.Loader.Load(ctx, t, rs, Append)
		committed += n
		return err
	})
	if err != nil {
		return committed, err
	}
	logger.Info("census file loaded", "rows", committed)
	return committed, nil
}

func (j *CensusJob) logger() *slog.Logger {
	if j.Logger == nil {
		return slog.Default()
	}
	return j.Logger
}

// Fetcher downloads a reference collection. IBGEClient implements it.
type Fetcher interface {
	Fetch(ctx context.Context, endpoint string) ([]Record, error)
}

// ReferenceJob replaces one reference table with a fresh IBGE collection.
type ReferenceJob struct {
	Endpoint string
	Table    schema.Table
	Fetcher  Fetcher
	Loader   *Loader
}

func (j *ReferenceJob) Name() string {
	return "localidades:" + j.Endpoint
}

func (j *ReferenceJob) Run(ctx context.Context) (int, error) {
	records, err := j.Fetcher.Fetch(ctx, j.Endpoint)
	if err != nil {
		return 0, err
	}
	rs, err := TableProjection(j.Table).Project(records)
	if err != nil {
		return 0, errors.Wrap(err, j.Endpoint)
	}
	return j.Loader.Load(ctx, j.Table, rs, Replace)
}

// Reference describes an IBGE collection and the table it fills.
type Reference struct {
	Endpoint string
	Table    schema.Table
}

// References lists the reference collections in load order.
var References = []Reference{
	{Endpoint: "estados", Table: schema.UFs},
	{Endpoint: "municipios", Table: schema.Municipios},
	{Endpoint: "mesorregioes", Table: schema.Mesorregioes},
	{Endpoint: "microrregioes", Table: schema.Microrregioes},
}

// LookupReference resolves an endpoint or table name, so both "estados"
// and "ufs" name the states collection.
func LookupReference(name string) (Reference, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, r := range References {
		if r.Endpoint == name || r.Table.Name == name {
			return r, nil
		}
	}
	return Reference{}, errors.Newf(errors.ErrValidation, "unknown reference collection %q", name)
}

// ReferenceNames returns the endpoint names of all reference collections.
func ReferenceNames() []string {
	out := make([]string, len(References))
	for i, r := range References {
		out[i] = r.Endpoint
	}
	return out
}

func (r Reference) String() string {
	return fmt.Sprintf("%s -> %s", r.Endpoint, r.Table.Name)
}
