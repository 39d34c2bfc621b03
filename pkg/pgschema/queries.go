package pgschema

const (
	querySelectTables = `
SELECT c.oid::bigint, c.relname, c.relreplident::text
FROM   pg_class c
JOIN   pg_namespace n ON n.oid = c.relnamespace
WHERE  c.relkind = 'r'
AND    n.nspname = current_schema()
ORDER  BY c.relname;
`
	querySelectCols = `
SELECT   attname, attnum
FROM     pg_attribute
WHERE    attrelid = $1
AND      attnum > 0
AND      NOT attisdropped
ORDER BY attnum;
`
)
