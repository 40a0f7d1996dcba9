package sandbox

import (
	"encoding/json"
	"errors"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/vitwit/invoicepay/types"
)

var errNotFound = errors.New("not found")

// record is an invoice plus the sandbox's own bookkeeping
type record struct {
	Invoice types.Invoice `json:"invoice"`
	Checks  int           `json:"checks"`
}

// Store persists sandbox invoices in badger
type Store struct {
	db *badger.DB
}

// OpenStore opens a badger store in dir; an empty dir keeps everything in
// memory
func OpenStore(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func invoiceKey(id string) []byte {
	return []byte("invoice/" + id)
}

func txKey(network types.Network, hash string) []byte {
	return []byte("tx/" + string(network) + "/" + hash)
}

func (s *Store) get(id string) (*record, error) {
	var rec record
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(invoiceKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return errNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *Store) put(rec *record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(invoiceKey(rec.Invoice.ID), raw)
	})
}

// bindTx records that hash pays invoice id. It returns the id the hash was
// already bound to, if any.
func (s *Store) bindTx(network types.Network, hash, id string) (string, error) {
	var owner string
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(txKey(network, hash))
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			owner = id
			return txn.Set(txKey(network, hash), []byte(id))
		case err != nil:
			return err
		}
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		owner = string(val)
		return nil
	})
	return owner, err
}
