package index

const schemaVersion = 1

const schemaDDL = `
CREATE TABLE IF NOT EXISTS index_meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS passages (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	content          TEXT    NOT NULL,
	article_number   INTEGER NOT NULL CHECK (article_number >= 1),
	paragraph_number TEXT    NOT NULL,
	embedding        BLOB    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_passages_address ON passages(article_number, paragraph_number);
`

const (
	metaSchemaVersion  = "schema_version"
	metaEmbeddingModel = "embedding_model"
	metaDimensions     = "dimensions"
)
