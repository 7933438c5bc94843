package pgx

const upsertDocumentSQL = `
INSERT INTO documents (id, type, name, url, bytes, content_hash)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE
SET type = EXCLUDED.type,
    name = EXCLUDED.name,
    url = EXCLUDED.url,
    bytes = EXCLUDED.bytes,
    content_hash = EXCLUDED.content_hash,
    updated_at = now()
WHERE EXCLUDED.content_hash = ''
   OR documents.content_hash IS DISTINCT FROM EXCLUDED.content_hash
RETURNING id
`

const deleteDocumentMentionsSQL = `
DELETE FROM mentions m
USING chunks c
WHERE m.chunk_id = c.id AND c.document_id = $1
`

const deleteStaleChunksSQL = `
DELETE FROM chunks
WHERE document_id = $1 AND NOT (id = ANY($2::text[]))
`

const upsertChunkSQL = `
INSERT INTO chunks (id, document_id, seq, text, start_offset, end_offset, embedding)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO UPDATE
SET document_id = EXCLUDED.document_id,
    seq = EXCLUDED.seq,
    text = EXCLUDED.text,
    start_offset = EXCLUDED.start_offset,
    end_offset = EXCLUDED.end_offset,
    embedding = EXCLUDED.embedding
`

const upsertConceptsSQL = `
INSERT INTO concepts (id, label, lemma, freq)
SELECT * FROM unnest($1::text[], $2::text[], $3::text[], $4::bigint[])
ON CONFLICT (label) DO UPDATE
SET freq = concepts.freq + EXCLUDED.freq
`

const insertMentionsSQL = `
INSERT INTO mentions (chunk_id, concept_id)
SELECT m.chunk_id, c.id
FROM unnest($1::text[], $2::text[]) AS m(chunk_id, label)
JOIN concepts c ON c.label = m.label
ON CONFLICT DO NOTHING
`

const upsertCooccursSQL = `
INSERT INTO cooccurs (source, target, weight)
SELECT * FROM unnest($1::text[], $2::text[], $3::double precision[])
ON CONFLICT (source, target) DO UPDATE
SET weight = cooccurs.weight + EXCLUDED.weight
`

const documentColumns = `id, type, name, coalesce(url, ''), bytes, content_hash, created_at`

const getDocumentSQL = `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`

const getDocumentsSQL = `SELECT ` + documentColumns + ` FROM documents WHERE id = ANY($1::text[])`

const chunkColumns = `c.id, c.document_id, c.seq, c.text, c.start_offset, c.end_offset`

const vectorSearchSQL = `
SELECT ` + chunkColumns + `, 1 - (c.embedding <=> $1) AS score
FROM chunks c
WHERE c.embedding IS NOT NULL
ORDER BY c.embedding <=> $1, c.id
LIMIT $2
`

const keywordSearchSQL = `
SELECT ` + chunkColumns + `, ts_rank_cd(c.tsv, q)::double precision AS score
FROM chunks c, to_tsquery('english', $1) q
WHERE c.tsv @@ q
ORDER BY score DESC, c.id
LIMIT $2
`

const conceptColumns = `c.id, c.label, c.lemma, c.freq, c.community`

const conceptsForChunksSQL = `
SELECT DISTINCT ` + conceptColumns + `
FROM mentions m
JOIN concepts c ON c.id = m.concept_id
WHERE m.chunk_id = ANY($1::text[])
ORDER BY c.label
`

const neighborEdgesSQL = `
SELECT source, target, weight
FROM cooccurs
WHERE source = ANY($1::text[]) OR target = ANY($1::text[])
ORDER BY source, target
`

const conceptsByLabelSQL = `
SELECT ` + conceptColumns + `
FROM concepts c
WHERE c.label = ANY($1::text[])
ORDER BY c.label
`

const allConceptsSQL = `SELECT ` + conceptColumns + ` FROM concepts c ORDER BY c.label`

const allEdgesSQL = `SELECT source, target, weight FROM cooccurs ORDER BY source, target`

const getConceptSQL = `SELECT ` + conceptColumns + ` FROM concepts c WHERE c.id = $1`

const conceptSnippetsSQL = `
SELECT ch.text, d.name, coalesce(d.url, '')
FROM mentions m
JOIN chunks ch ON ch.id = m.chunk_id
JOIN documents d ON d.id = ch.document_id
WHERE m.concept_id = $1
ORDER BY ch.id
LIMIT $2
`

const clearCommunitiesSQL = `UPDATE concepts SET community = NULL WHERE community IS NOT NULL`

const writeCommunitiesSQL = `
UPDATE concepts c
SET community = a.community
FROM unnest($1::text[], $2::bigint[]) AS a(label, community)
WHERE c.label = a.label
`

const statsSQL = `
SELECT
    (SELECT count(*) FROM documents),
    (SELECT count(*) FROM chunks),
    (SELECT count(*) FROM concepts),
    (SELECT count(*) FROM cooccurs),
    (SELECT coalesce(sum(bytes), 0)::bigint FROM documents)
`
