package driver

const (
	SaveContactQuery = `
		MERGE (c:Contact {user_id: $user_id, source: $source, id: $id})
		SET c.name = $name,
			c.email = $email,
			c.phone = $phone,
			c.company = $company,
			c.updated_at = $updated_at,
			c.metadata = $metadata
		RETURN c.id AS id
	`

	ListContactsQuery = `
		MATCH (c:Contact {user_id: $user_id})
		RETURN c.id AS id, c.source AS source, c.name AS name, c.email AS email,
			c.phone AS phone, c.company AS company, c.updated_at AS updated_at,
			c.metadata AS metadata
		ORDER BY c.updated_at DESC
	`

	ListContactsChangedSinceQuery = `
		MATCH (c:Contact {user_id: $user_id})
		WHERE c.updated_at > $since
		RETURN c.id AS id, c.source AS source, c.name AS name, c.email AS email,
			c.phone AS phone, c.company AS company, c.updated_at AS updated_at,
			c.metadata AS metadata
		ORDER BY c.updated_at DESC
	`

	GetCursorQuery = `
		MATCH (s:SyncCursor {user_id: $user_id, provider: $provider})
		RETURN s.synced_at AS synced_at
	`

	SaveCursorQuery = `
		MERGE (s:SyncCursor {user_id: $user_id, provider: $provider})
		SET s.synced_at = $synced_at
		RETURN s.synced_at AS synced_at
	`

	SaveEmbeddingQuery = `
		MERGE (e:Embedding {user_id: $user_id, kind: $kind, ref_id: $ref_id})
		SET e.vector = $vector,
			e.updated_at = $updated_at
		RETURN e.ref_id AS ref_id
	`
)
