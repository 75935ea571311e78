package importer

import (
	"os"
	"path/filepath"

	"github.com/nonsonwune/censo_db/errors"
	"gopkg.in/yaml.v3"
)

// Manifest lists the sources of a full ingestion run.
//
//	census:
//	  - microdados_ed_basica_2023.csv
//	  - microdados_ed_basica_2024.csv
//	references: [estados, municipios, mesorregioes, microrregioes]
//
// Relative census paths are resolved against the manifest's directory.
type Manifest struct {
	Census     []string `yaml:"census"`
	References []string `yaml:"references"`
	// Encoding and Delimiter override the configured CSV format.
	Encoding  string `yaml:"encoding,omitempty"`
	Delimiter string `yaml:"delimiter,omitempty"`
}

// DefaultManifest is used when no manifest file is configured.
func DefaultManifest() Manifest {
	return Manifest{
		Census: []string{
			"microdados_ed_basica_2023.csv",
			"microdados_ed_basica_2024.csv",
		},
		References: ReferenceNames(),
	}
}

// LoadManifest reads a YAML manifest from path.
func LoadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Manifest{}, errors.Newf(errors.ErrSourceNotFound, "manifest not found: %s", path)
		}
		return Manifest{}, errors.Wrapf(err, "reading manifest %s", path)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, errors.WithCodef(err, errors.ErrDecode, "parsing manifest %s", path)
	}
	dir := filepath.Dir(path)
	for i, p := range m.Census {
		if !filepath.IsAbs(p) {
			m.Census[i] = filepath.Join(dir, p)
		}
	}
	return m, m.Validate()
}

// Validate checks that every reference name is known and that the CSV
// format overrides are usable.
func (m Manifest) Validate() error {
	for _, r := range m.References {
		if _, err := LookupReference(r); err != nil {
			return err
		}
	}
	if m.Encoding != "" && !SupportedEncoding(m.Encoding) {
		return errors.Newf(errors.ErrValidation, "manifest: unsupported encoding %q", m.Encoding)
	}
	if len([]rune(m.Delimiter)) > 1 {
		return errors.Newf(errors.ErrValidation, "manifest: delimiter %q is not a single character", m.Delimiter)
	}
	return nil
}

// CSVOptions applies the manifest overrides to base.
func (m Manifest) CSVOptions(base CSVOptions) CSVOptions {
	if m.Encoding != "" {
		base.Encoding = m.Encoding
	}
	if r := []rune(m.Delimiter); len(r) == 1 {
		base.Delimiter = r[0]
	}
	return base
}
