// Package verses is the persistence layer of the verses collection.
//
// # Overview
//
// Verse records are keyed by the composite id translation-book-chapter-verse
// (see models.VerseID) and carry two secondary indexes: by translation and
// by (translation, book, chapter). Put overwrites by primary key; reads
// return an empty result rather than an error when nothing matches.
//
// The SQLite implementation works over a dbx.DBTX, so a batch of puts can be
// scoped to one transaction:
//
//	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
//	    repo := verses.NewSQLiteRepository(tx)
//	    for _, v := range batch {
//	        if err := repo.Put(ctx, v); err != nil {
//	            return err
//	        }
//	    }
//	    return nil
//	})
package verses
