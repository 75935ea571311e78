package schema

// Column names of the census fact table.
const (
	ColRegiaoNome       = "NO_REGIAO"
	ColRegiaoCodigo     = "CO_REGIAO"
	ColUFNome           = "NO_UF"
	ColUFSigla          = "SG_UF"
	ColUFCodigo         = "CO_UF"
	ColMunicipioNome    = "NO_MUNICIPIO"
	ColMunicipioCodigo  = "CO_MUNICIPIO"
	ColMesorregiaoNome  = "NO_MESORREGIAO"
	ColMicrorregiaoNome = "NO_MICRORREGIAO"
	ColEntidadeNome     = "NO_ENTIDADE"
	ColEntidadeCodigo   = "CO_ENTIDADE"
	ColAno              = "ano"
)

// Enrollment counters of the census fact table, in source order.
var MatriculaColumns = []string{
	"QT_MAT_BAS",
	"QT_MAT_INF",
	"QT_MAT_FUND",
	"QT_MAT_MED",
	"QT_MAT_EJA",
	"QT_MAT_EJA_FUND",
	"QT_MAT_ESP",
	"QT_MAT_BAS_EAD",
	"QT_MAT_FUND_INT",
	"QT_MAT_MED_INT",
}

// Instituicoes is the census fact table. Rows are identified by
// (CO_ENTIDADE, ano); the pair is only indexed, not constrained, so that a
// repeated append of one census year stays visible as duplicated rows.
var Instituicoes = Table{
	Name: "instituicoes",
	Fields: append([]Field{
		{Name: ColRegiaoNome, Type: Text},
		{Name: ColRegiaoCodigo, Type: Integer, Nullable: true},
		{Name: ColUFNome, Type: Text},
		{Name: ColUFSigla, Type: Text},
		{Name: ColUFCodigo, Type: Integer, Nullable: true},
		{Name: ColMunicipioNome, Type: Text},
		{Name: ColMunicipioCodigo, Type: Integer, Nullable: true},
		{Name: ColMesorregiaoNome, Type: Text},
		{Name: ColMicrorregiaoNome, Type: Text},
		{Name: ColEntidadeNome, Type: Text},
		{Name: ColEntidadeCodigo, Type: BigInt},
	}, append(matriculaFields(), Field{Name: ColAno, Type: Integer, Derived: true})...),
	Key:     []string{ColEntidadeCodigo, ColAno},
	Indexes: [][]string{{ColUFSigla, ColAno}},
}

func matriculaFields() []Field {
	fields := make([]Field, len(MatriculaColumns))
	for i, c := range MatriculaColumns {
		fields[i] = Field{Name: c, Type: Integer, Nullable: true, NonNegative: true}
	}
	return fields
}

// UFs holds the states returned by the IBGE "estados" endpoint.
var UFs = Table{
	Name: "ufs",
	Fields: []Field{
		{Name: "id", Type: Integer},
		{Name: "sigla", Type: Text},
		{Name: "nome", Type: Text},
		{Name: "regiao_id", Source: "regiao.id", Type: Integer, Nullable: true},
		{Name: "regiao_sigla", Source: "regiao.sigla", Type: Text},
		{Name: "regiao_nome", Source: "regiao.nome", Type: Text},
	},
	Key:    []string{"id"},
	Unique: true,
}

// Municipios holds the IBGE "municipios" endpoint, reduced to the
// containment chain up to the region.
var Municipios = Table{
	Name: "municipios",
	Fields: []Field{
		{Name: "id", Type: Integer},
		{Name: "nome", Type: Text},
		{Name: "microrregiao_id", Source: "microrregiao.id", Type: Integer, Nullable: true},
		{Name: "microrregiao_nome", Source: "microrregiao.nome", Type: Text},
		{Name: "mesorregiao_id", Source: "microrregiao.mesorregiao.id", Type: Integer, Nullable: true},
		{Name: "mesorregiao_nome", Source: "microrregiao.mesorregiao.nome", Type: Text},
		{Name: "uf_id", Source: "microrregiao.mesorregiao.UF.id", Type: Integer, Nullable: true},
		{Name: "uf_sigla", Source: "microrregiao.mesorregiao.UF.sigla", Type: Text},
		{Name: "uf_nome", Source: "microrregiao.mesorregiao.UF.nome", Type: Text},
		{Name: "regiao_id", Source: "microrregiao.mesorregiao.UF.regiao.id", Type: Integer, Nullable: true},
		{Name: "regiao_sigla", Source: "microrregiao.mesorregiao.UF.regiao.sigla", Type: Text},
		{Name: "regiao_nome", Source: "microrregiao.mesorregiao.UF.regiao.nome", Type: Text},
	},
	Key:     []string{"id"},
	Unique:  true,
	Indexes: [][]string{{"uf_sigla"}},
}

// Mesorregioes mirrors the IBGE "mesorregioes" payload with every nested
// path flattened.
var Mesorregioes = Table{
	Name: "mesorregioes",
	Fields: []Field{
		flat("id", Integer, false),
		flat("nome", Text, false),
		flat("UF.id", Integer, true),
		flat("UF.sigla", Text, false),
		flat("UF.nome", Text, false),
		flat("UF.regiao.id", Integer, true),
		flat("UF.regiao.sigla", Text, false),
		flat("UF.regiao.nome", Text, false),
	},
	Key:        []string{"id"},
	Unique:     true,
	FlattenAll: true,
}

// Microrregioes mirrors the IBGE "microrregioes" payload with every nested
// path flattened.
var Microrregioes = Table{
	Name: "microrregioes",
	Fields: []Field{
		flat("id", Integer, false),
		flat("nome", Text, false),
		flat("mesorregiao.id", Integer, true),
		flat("mesorregiao.nome", Text, false),
		flat("mesorregiao.UF.id", Integer, true),
		flat("mesorregiao.UF.sigla", Text, false),
		flat("mesorregiao.UF.nome", Text, false),
		flat("mesorregiao.UF.regiao.id", Integer, true),
		flat("mesorregiao.UF.regiao.sigla", Text, false),
		flat("mesorregiao.UF.regiao.nome", Text, false),
	},
	Key:        []string{"id"},
	Unique:     true,
	FlattenAll: true,
}

func flat(path string, typ Type, nullable bool) Field {
	return Field{Name: FlattenedName(path), Source: path, Type: typ, Nullable: nullable}
}

// References lists the tables loaded from the IBGE API, in load order.
func References() []Table {
	return []Table{UFs, Municipios, Mesorregioes, Microrregioes}
}

// All lists every table owned by the store.
func All() []Table {
	return append([]Table{Instituicoes}, References()...)
}
