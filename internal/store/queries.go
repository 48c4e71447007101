package store

const (
	enqueueOperation = `INSERT INTO operations (
			id, kind, entity_type, payload, created_at, priority, retries, cacheable, encrypted
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);`

	// Priority ranks: high before normal before low, FIFO within a rank.
	listPendingOperations = `SELECT id, kind, entity_type, payload, created_at, priority, retries, cacheable, encrypted
		FROM operations
		ORDER BY CASE priority
			WHEN 'high' THEN 0
			WHEN 'normal' THEN 1
			WHEN 'low' THEN 2
			ELSE 3
		END, created_at ASC;`

	getOperation = `SELECT id, kind, entity_type, payload, created_at, priority, retries, cacheable, encrypted
		FROM operations
		WHERE id = ?;`

	deleteOperation = `DELETE FROM operations WHERE id = ?;`

	incrementOperationRetries = `UPDATE operations SET retries = retries + 1 WHERE id = ?;`

	countOperations = `SELECT COUNT(*) FROM operations;`

	upsertSyncState = `INSERT INTO sync_state (id, last_sync_at, pending, in_progress, next_sync_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			last_sync_at = excluded.last_sync_at,
			pending      = excluded.pending,
			in_progress  = excluded.in_progress,
			next_sync_at = excluded.next_sync_at;`

	getSyncState = `SELECT last_sync_at, pending, in_progress, next_sync_at
		FROM sync_state
		WHERE id = 1;`

	appendSyncLog = `INSERT INTO sync_log (operation_id, kind, entity_type, outcome, at, duration_ns, error)
		VALUES (?, ?, ?, ?, ?, ?, ?);`

	// FIFO prune: the oldest rows fall out first once the retained count is
	// exceeded.
	pruneSyncLog = `DELETE FROM sync_log
		WHERE seq NOT IN (SELECT seq FROM sync_log ORDER BY seq DESC LIMIT ?);`

	listSyncLog = `SELECT operation_id, kind, entity_type, outcome, at, duration_ns, error
		FROM sync_log
		ORDER BY seq ASC;`

	saveConflict = `INSERT INTO conflicts (id, entity_id, entity_type, local, remote, options, detected_at, resolved, resolution)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, '');`

	listUnresolvedConflicts = `SELECT id, entity_id, entity_type, local, remote, options, detected_at, resolved, resolution
		FROM conflicts
		WHERE resolved = 0
		ORDER BY detected_at ASC;`

	getConflict = `SELECT id, entity_id, entity_type, local, remote, options, detected_at, resolved, resolution
		FROM conflicts
		WHERE id = ?;`

	markConflictResolved = `UPDATE conflicts SET resolved = 1, resolution = ? WHERE id = ?;`

	upsertConflictBackup = `INSERT INTO conflict_backups (entity_id, entity_type, local, remote, saved_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (entity_id) DO UPDATE SET
			entity_type = excluded.entity_type,
			local       = excluded.local,
			remote      = excluded.remote,
			saved_at    = excluded.saved_at;`

	getConflictBackup = `SELECT entity_id, entity_type, local, remote, saved_at
		FROM conflict_backups
		WHERE entity_id = ?;`

	upsertCacheEntry = `INSERT INTO cache_entries (partition, key, status_code, headers, body, stored_at, expires_at, cacheable, encrypted, category)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (partition, key) DO UPDATE SET
			status_code = excluded.status_code,
			headers     = excluded.headers,
			body        = excluded.body,
			stored_at   = excluded.stored_at,
			expires_at  = excluded.expires_at,
			cacheable   = excluded.cacheable,
			encrypted   = excluded.encrypted,
			category    = excluded.category;`

	getCacheEntry = `SELECT partition, key, status_code, headers, body, stored_at, expires_at, cacheable, encrypted
		FROM cache_entries
		WHERE partition = ? AND key = ?;`

	listCachePartitions = `SELECT DISTINCT partition FROM cache_entries;`

	deleteCachePartition = `DELETE FROM cache_entries WHERE partition = ?;`

	upsertConsent = `INSERT INTO consents (category, granted, recorded_at)
		VALUES (?, ?, ?)
		ON CONFLICT (category) DO UPDATE SET
			granted     = excluded.granted,
			recorded_at = excluded.recorded_at;`

	getConsent = `SELECT granted FROM consents WHERE category = ?;`

	upsertSecret = `INSERT INTO secrets (name, value, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (name) DO NOTHING;`

	getSecret = `SELECT value FROM secrets WHERE name = ?;`
)
