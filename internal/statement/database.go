package statement

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"
)

const (
	creditCardBucket  = "credit_cards"
	categoryBucket    = "categories"
	transactionBucket = "transactions"
	statementBucket   = "statements"
	lineItemBucket    = "line_items"
)

// StatementFilter narrows ListStatements.
type StatementFilter struct {
	CreditCardID string
	Status       Status
}

// DB defines the persistence surface the import pipeline needs.
type DB interface {
	// SaveCreditCard inserts or updates a credit card.
	SaveCreditCard(card *CreditCard) error

	// GetCreditCard retrieves a card by ID, scoped to its owner.
	GetCreditCard(ownerID, id string) (*CreditCard, error)

	// SaveCategory inserts or updates a category.
	SaveCategory(category *Category) error

	// ListCategories returns all of an owner's categories.
	ListCategories(ownerID string) ([]*Category, error)

	// SaveTransaction inserts or updates a transaction.
	SaveTransaction(tx *Transaction) error

	// FindTransactions returns an owner's transactions for one credit
	// card with dates inside [startDate, endDate] inclusive.
	FindTransactions(ownerID, creditCardID, startDate, endDate string) ([]*Transaction, error)

	// SaveStatement inserts or updates a statement.
	SaveStatement(st *CreditCardStatement) error

	// GetStatement retrieves a statement by ID, scoped to its owner.
	GetStatement(ownerID, id string) (*CreditCardStatement, error)

	// ListStatements returns an owner's statements matching the filter,
	// newest first.
	ListStatements(ownerID string, filter StatementFilter) ([]*CreditCardStatement, error)

	// FindStatementByFileHash looks up a prior upload of the same file
	// for the same card. Returns ErrNotFound when there is none.
	FindStatementByFileHash(ownerID, creditCardID, fileHash string) (*CreditCardStatement, error)

	// ListLineItems returns a statement's line items in statement order.
	ListLineItems(statementID string) ([]*StatementLineItem, error)

	// SaveAnnotation atomically replaces a statement's line items with
	// freshly annotated ones and persists the updated statement header.
	SaveAnnotation(st *CreditCardStatement, items []*StatementLineItem) error

	// CommitImport atomically writes everything an import produces: the
	// created transactions, the updated line items, the statement status
	// flip and, when requested, the card's new current bill. The commit
	// is guarded by a compare-and-set on the stored statement still
	// being in the reviewed state; a lost race returns ErrConflict and
	// writes nothing.
	CommitImport(st *CreditCardStatement, items []*StatementLineItem, txns []*Transaction, card *CreditCard) error

	// Close closes the database.
	Close() error
}

// BoltDB implements DB on bbolt.
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB opens (or creates) the database file and its buckets.
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{creditCardBucket, categoryBucket, transactionBucket, statementBucket, lineItemBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

func putJSON(tx *bbolt.Tx, bucket, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", bucket, err)
	}
	return tx.Bucket([]byte(bucket)).Put([]byte(key), data)
}

// SaveCreditCard inserts or updates a credit card.
func (b *BoltDB) SaveCreditCard(card *CreditCard) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return putJSON(tx, creditCardBucket, card.ID, card)
	})
}

// GetCreditCard retrieves a card by ID, scoped to its owner.
func (b *BoltDB) GetCreditCard(ownerID, id string) (*CreditCard, error) {
	var card *CreditCard
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(creditCardBucket)).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("credit card %s: %w", id, ErrNotFound)
		}
		return json.Unmarshal(data, &card)
	})
	if err != nil {
		return nil, err
	}
	if card.OwnerID != ownerID {
		return nil, fmt.Errorf("credit card %s: %w", id, ErrNotFound)
	}
	return card, nil
}

// SaveCategory inserts or updates a category.
func (b *BoltDB) SaveCategory(category *Category) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return putJSON(tx, categoryBucket, category.ID, category)
	})
}

// ListCategories returns all of an owner's categories.
func (b *BoltDB) ListCategories(ownerID string) ([]*Category, error) {
	categories := make([]*Category, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(categoryBucket)).ForEach(func(k, v []byte) error {
			var c Category
			if err := json.Unmarshal(v, &c); err != nil {
				return fmt.Errorf("unmarshaling category: %w", err)
			}
			if c.OwnerID == ownerID {
				categories = append(categories, &c)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return categories, nil
}

// SaveTransaction inserts or updates a transaction.
func (b *BoltDB) SaveTransaction(txn *Transaction) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return putJSON(tx, transactionBucket, txn.ID, txn)
	})
}

// FindTransactions returns an owner's transactions for one credit card with
// dates inside [startDate, endDate]. ISO date strings compare lexically.
func (b *BoltDB) FindTransactions(ownerID, creditCardID, startDate, endDate string) ([]*Transaction, error) {
	txns := make([]*Transaction, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(transactionBucket)).ForEach(func(k, v []byte) error {
			var t Transaction
			if err := json.Unmarshal(v, &t); err != nil {
				return fmt.Errorf("unmarshaling transaction: %w", err)
			}
			if t.OwnerID == ownerID && t.CreditCardID == creditCardID &&
				t.Date >= startDate && t.Date <= endDate {
				txns = append(txns, &t)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return txns, nil
}

// SaveStatement inserts or updates a statement.
func (b *BoltDB) SaveStatement(st *CreditCardStatement) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return putJSON(tx, statementBucket, st.ID, st)
	})
}

// GetStatement retrieves a statement by ID, scoped to its owner.
func (b *BoltDB) GetStatement(ownerID, id string) (*CreditCardStatement, error) {
	var st *CreditCardStatement
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(statementBucket)).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("statement %s: %w", id, ErrNotFound)
		}
		return json.Unmarshal(data, &st)
	})
	if err != nil {
		return nil, err
	}
	if st.OwnerID != ownerID {
		return nil, fmt.Errorf("statement %s: %w", id, ErrNotFound)
	}
	return st, nil
}

// ListStatements returns an owner's statements matching the filter, newest
// first.
func (b *BoltDB) ListStatements(ownerID string, filter StatementFilter) ([]*CreditCardStatement, error) {
	statements := make([]*CreditCardStatement, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(statementBucket)).ForEach(func(k, v []byte) error {
			var st CreditCardStatement
			if err := json.Unmarshal(v, &st); err != nil {
				return fmt.Errorf("unmarshaling statement: %w", err)
			}
			if st.OwnerID != ownerID {
				return nil
			}
			if filter.CreditCardID != "" && st.CreditCardID != filter.CreditCardID {
				return nil
			}
			if filter.Status != "" && st.Status != filter.Status {
				return nil
			}
			statements = append(statements, &st)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(statements, func(i, j int) bool {
		return statements[i].CreatedAt.After(statements[j].CreatedAt)
	})
	return statements, nil
}

// FindStatementByFileHash looks up a prior upload of the same file for the
// same card.
func (b *BoltDB) FindStatementByFileHash(ownerID, creditCardID, fileHash string) (*CreditCardStatement, error) {
	var found *CreditCardStatement
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(statementBucket)).ForEach(func(k, v []byte) error {
			var st CreditCardStatement
			if err := json.Unmarshal(v, &st); err != nil {
				return fmt.Errorf("unmarshaling statement: %w", err)
			}
			if st.OwnerID == ownerID && st.CreditCardID == creditCardID && st.FileHash == fileHash {
				found = &st
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, fmt.Errorf("statement with hash %s: %w", fileHash, ErrNotFound)
	}
	return found, nil
}

// ListLineItems returns a statement's line items in statement order.
func (b *BoltDB) ListLineItems(statementID string) ([]*StatementLineItem, error) {
	items := make([]*StatementLineItem, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(lineItemBucket)).ForEach(func(k, v []byte) error {
			var item StatementLineItem
			if err := json.Unmarshal(v, &item); err != nil {
				return fmt.Errorf("unmarshaling line item: %w", err)
			}
			if item.StatementID == statementID {
				items = append(items, &item)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].Position < items[j].Position
	})
	return items, nil
}

// SaveAnnotation atomically replaces a statement's line items and persists
// the updated header. Re-annotation overwrites rather than accumulates.
func (b *BoltDB) SaveAnnotation(st *CreditCardStatement, items []*StatementLineItem) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		if err := deleteLineItems(tx, st.ID); err != nil {
			return err
		}
		for _, item := range items {
			if err := putJSON(tx, lineItemBucket, item.ID, item); err != nil {
				return err
			}
		}
		return putJSON(tx, statementBucket, st.ID, st)
	})
}

// CommitImport writes the whole import in one transaction, guarded by a
// compare-and-set on the stored statement still being reviewed.
func (b *BoltDB) CommitImport(st *CreditCardStatement, items []*StatementLineItem, txns []*Transaction, card *CreditCard) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(statementBucket)).Get([]byte(st.ID))
		if data == nil {
			return fmt.Errorf("statement %s: %w", st.ID, ErrNotFound)
		}
		var current CreditCardStatement
		if err := json.Unmarshal(data, &current); err != nil {
			return fmt.Errorf("unmarshaling statement: %w", err)
		}
		if current.Status != StatusReviewed {
			return fmt.Errorf("statement %s is %s, not reviewed: %w", st.ID, current.Status, ErrConflict)
		}

		for _, txn := range txns {
			if err := putJSON(tx, transactionBucket, txn.ID, txn); err != nil {
				return err
			}
		}
		for _, item := range items {
			if err := putJSON(tx, lineItemBucket, item.ID, item); err != nil {
				return err
			}
		}
		if card != nil {
			if err := putJSON(tx, creditCardBucket, card.ID, card); err != nil {
				return err
			}
		}
		return putJSON(tx, statementBucket, st.ID, st)
	})
}

func deleteLineItems(tx *bbolt.Tx, statementID string) error {
	bucket := tx.Bucket([]byte(lineItemBucket))

	var stale [][]byte
	err := bucket.ForEach(func(k, v []byte) error {
		var item StatementLineItem
		if err := json.Unmarshal(v, &item); err != nil {
			return fmt.Errorf("unmarshaling line item: %w", err)
		}
		if item.StatementID == statementID {
			stale = append(stale, append([]byte(nil), k...))
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, k := range stale {
		if err := bucket.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database.
func (b *BoltDB) Close() error {
	return b.db.Close()
}
