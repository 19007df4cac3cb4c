package knowledge

import (
	"context"
	"fmt"
	"runtime"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
)

// Base is the queryable knowledge base built from embedded chunks. It
// wraps a chromem-go collection; the vector index representation is owned
// entirely by this package.
type Base struct {
	db            *chromem.DB
	collection    *chromem.Collection
	dbPath        string
	compress      bool
	encryptionKey string
	filePath      string
}

const compress = false

// NewMemoryBase creates an in-memory knowledge base, one per request.
func NewMemoryBase(collectionName string) (*Base, error) {
	db := chromem.NewDB()
	c, err := db.GetOrCreateCollection(collectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %v", err)
	}
	return &Base{db: db, collection: c}, nil
}

// NewPersistentBase creates a knowledge base backed by an on-disk store,
// for keeping an index alive across runs.
func NewPersistentBase(dbPath, collectionName, encryptionKey string) (*Base, error) {
	db, err := chromem.NewPersistentDB(dbPath, compress)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %v", err)
	}
	c, err := db.GetOrCreateCollection(collectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %v", err)
	}
	return &Base{
		db:            db,
		collection:    c,
		dbPath:        dbPath,
		compress:      compress,
		encryptionKey: encryptionKey,
		filePath:      dbPath + "/" + collectionName + ".chromem",
	}, nil
}

// AddDocuments adds pre-embedded documents to the collection.
func (b *Base) AddDocuments(ctx context.Context, docs []chromem.Document) error {
	err := b.collection.AddDocuments(ctx, docs, runtime.NumCPU())
	if err != nil {
		return fmt.Errorf("failed to add documents: %v", err)
	}
	return nil
}

// Len reports the number of indexed chunks.
func (b *Base) Len() int {
	return b.collection.Count()
}

// Search returns up to topK chunks nearest to the query embedding.
func (b *Base) Search(ctx context.Context, queryEmbedding []float32, topK int) ([]chromem.Result, error) {
	if len(queryEmbedding) == 0 {
		return nil, fmt.Errorf("query embedding must be provided")
	}
	if n := b.collection.Count(); topK > n {
		topK = n
	}
	if topK <= 0 {
		return nil, nil
	}

	results, err := b.collection.QueryWithOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: queryEmbedding,
		NResults:       topK,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %v", err)
	}
	return results, nil
}

// DeleteCollection drops the underlying collection.
func (b *Base) DeleteCollection() error {
	err := b.db.DeleteCollection(b.collection.Name)
	if err != nil {
		return fmt.Errorf("failed to drop collection: %v", err)
	}
	return nil
}

// Export writes the collection to an encrypted file under the db path.
func (b *Base) Export(ctx context.Context) error {
	if b.encryptionKey == "" {
		return fmt.Errorf("encryption key is required")
	}
	if b.dbPath == "" {
		return fmt.Errorf("db path is required")
	}

	log.Debug().Str("collection", b.collection.Name).Str("file", b.filePath).Msg("Exporting knowledge base")
	err := b.db.ExportToFile(b.filePath, b.compress, b.encryptionKey, b.collection.Name)
	if err != nil {
		return fmt.Errorf("failed to export database: %v", err)
	}
	return nil
}

// Import restores a previously exported collection.
func (b *Base) Import(ctx context.Context) error {
	name := b.collection.Name
	err := b.db.ImportFromFile(b.filePath, b.encryptionKey)
	if err != nil {
		return fmt.Errorf("failed to import database: %v", err)
	}
	// The import replaces the collection inside the db, so the handle
	// taken at construction no longer sees the restored documents.
	c := b.db.GetCollection(name, nil)
	if c == nil {
		return fmt.Errorf("collection %s missing after import", name)
	}
	b.collection = c
	return nil
}
