// Package tasks provides the client-side journal of upload tasks.
//
// # Overview
//
// The package defines a Repository interface over TaskSnapshot records (see
// internal/client/models). SQLiteRepository persists them through a dbx.DBTX
// (either *sql.DB or *sql.Tx). Records are keyed by file hash, so writing the
// same task again replaces its previous state.
//
// The journal is history only: the upload coordinator keeps its own state in
// memory and never reads the journal back while running. The CLI uses it to
// list past uploads and to pick resume candidates after a restart.
//
// Typical Usage
//
//	repo := tasks.NewSQLiteRepository(db)
//	_ = repo.Upsert(ctx, snapshot)
//	one, _ := repo.GetByHash(ctx, hash)
//	broken, _ := repo.ListByStatus(ctx, models.StatusBroken)
package tasks
