package mapping

const (
	// NameMappingsTable holds (tenant, collection_type, raw_key) -> canonical_name.
	NameMappingsTable = "name_mappings"
	// AttributeEntriesTable holds (tenant, collection_type, collection_name) -> entries.
	AttributeEntriesTable = "attribute_entries"

	querySchema = `
CREATE TABLE IF NOT EXISTS name_mappings (
	tenant          TEXT NOT NULL,
	collection_type TEXT NOT NULL,
	raw_key         TEXT NOT NULL,
	canonical_name  TEXT NOT NULL,
	PRIMARY KEY (tenant, collection_type, raw_key)
);
CREATE TABLE IF NOT EXISTS attribute_entries (
	id              BIGSERIAL PRIMARY KEY,
	tenant          TEXT NOT NULL,
	collection_type TEXT NOT NULL,
	collection_name TEXT NOT NULL,
	attribute_name  TEXT NOT NULL,
	attribute_value TEXT NOT NULL,
	ordinal         INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS attribute_entries_lookup
	ON attribute_entries (tenant, collection_type, collection_name);
ALTER TABLE name_mappings REPLICA IDENTITY FULL;
ALTER TABLE attribute_entries REPLICA IDENTITY FULL;
`
	querySelectCanonicalName = `
SELECT canonical_name
FROM   name_mappings
WHERE  raw_key = $1
AND    collection_type = $2
AND    tenant = $3
LIMIT  1;
`
	querySelectAttributeEntries = `
SELECT   attribute_name, attribute_value
FROM     attribute_entries
WHERE    collection_type = $1
AND      collection_name = $2
AND      tenant = $3
ORDER BY ordinal, id;
`
	querySelectTemplateAttributes = `
SELECT   attribute_name
FROM     attribute_entries
WHERE    collection_type = $1
AND      tenant = $2
GROUP BY attribute_name
ORDER BY MIN(ordinal), MIN(id);
`
	querySelectCollectionTypes = `
SELECT DISTINCT collection_type
FROM   (
	SELECT collection_type FROM name_mappings WHERE tenant = $1
	UNION
	SELECT collection_type FROM attribute_entries WHERE tenant = $1
) t
ORDER BY collection_type;
`
)
