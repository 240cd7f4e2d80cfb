package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	bolt "go.etcd.io/bbolt"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	feedsBucket   = []byte("feeds")
	itemsBucket   = []byte("items")
	itemIDsBucket = []byte("item_ids")
)

var ErrFeedNotFound = errors.New("feed not found")

const defaultTimeout = 1 * time.Second

type Store struct {
	db *bolt.DB
}

// NewStore opens (or creates) the bolt database at dbPath. A non-positive
// timeout uses one second.
func NewStore(dbPath string, timeout time.Duration) (*Store, error) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	db, err := bolt.Open(dbPath, 0o600, &bolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{feedsBucket, itemsBucket, itemIDsBucket} {
			if _, createErr := tx.CreateBucketIfNotExists(bucket); createErr != nil {
				return createErr
			}
		}
		return nil
	})

	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) SaveFeed(feed *Feed) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(feedsBucket)
		data, err := json.Marshal(feed)
		if err != nil {
			return err
		}
		return b.Put([]byte(feed.ID), data)
	})
}

func (s *Store) GetFeed(id string) (*Feed, error) {
	var feed Feed
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(feedsBucket)
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrFeedNotFound, id)
		}
		return json.Unmarshal(data, &feed)
	})
	if err != nil {
		return nil, err
	}
	return &feed, nil
}

func (s *Store) GetAllFeeds() ([]*Feed, error) {
	var feeds []*Feed
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(feedsBucket)
		return b.ForEach(func(_ []byte, v []byte) error {
			var feed Feed
			if err := json.Unmarshal(v, &feed); err != nil {
				return err
			}
			feeds = append(feeds, &feed)
			return nil
		})
	})
	// Sort feeds by Title (case-insensitive), fallback to URL
	sort.Slice(feeds, func(i, j int) bool {
		ti := feeds[i].Title
		tj := feeds[j].Title
		if ti == "" {
			ti = feeds[i].URL
		}
		if tj == "" {
			tj = feeds[j].URL
		}
		return strings.ToLower(ti) < strings.ToLower(tj)
	})
	return feeds, err
}

// AppendItems archives items at the end of feedID's sequence. Items whose ID
// is already archived for the feed are skipped. It returns how many were
// stored.
func (s *Store) AppendItems(feedID string, items []*Item) (int, error) {
	if feedID == "" {
		return 0, fmt.Errorf("append items: empty feed id")
	}

	added := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.Bucket(itemsBucket).CreateBucketIfNotExists([]byte(feedID))
		if err != nil {
			return fmt.Errorf("creating item bucket: %w", err)
		}
		ids := tx.Bucket(itemIDsBucket)
		now := time.Now()

		for _, item := range items {
			idKey := itemIDKey(feedID, item.ID)
			if ids.Get(idKey) != nil {
				continue
			}

			seq, err := b.NextSequence()
			if err != nil {
				return err
			}
			stored := *item
			stored.FeedID = feedID
			stored.Seq = seq
			stored.Archived = now

			data, err := json.Marshal(&stored)
			if err != nil {
				return err
			}
			key := seqKey(seq)
			if err := b.Put(key, data); err != nil {
				return err
			}
			if err := ids.Put(idKey, key); err != nil {
				return err
			}
			item.Seq = seq
			added++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return added, nil
}

// GetItems returns up to limit archived items of feedID in append order,
// skipping the first offset. A non-positive limit returns everything after
// offset.
func (s *Store) GetItems(feedID string, offset, limit int) ([]*Item, error) {
	var items []*Item
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(itemsBucket).Bucket([]byte(feedID))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		skipped := 0
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if skipped < offset {
				skipped++
				continue
			}
			var item Item
			if err := json.Unmarshal(v, &item); err != nil {
				return fmt.Errorf("decoding item %x: %w", k, err)
			}
			items = append(items, &item)
			if limit > 0 && len(items) >= limit {
				break
			}
		}
		return nil
	})
	return items, err
}

func (s *Store) CountItems(feedID string) (int, error) {
	n := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		if b := tx.Bucket(itemsBucket).Bucket([]byte(feedID)); b != nil {
			n = b.Stats().KeyN
		}
		return nil
	})
	return n, err
}

func (s *Store) DeleteFeed(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		feedBucket := tx.Bucket(feedsBucket)
		if err := feedBucket.Delete([]byte(id)); err != nil {
			return err
		}

		items := tx.Bucket(itemsBucket)
		if items.Bucket([]byte(id)) != nil {
			if err := items.DeleteBucket([]byte(id)); err != nil {
				return err
			}
		}

		prefix := itemIDKey(id, "")
		c := tx.Bucket(itemIDsBucket).Cursor()
		for k, _ := c.Seek(prefix); k != nil && strings.HasPrefix(string(k), string(prefix)); k, _ = c.Seek(prefix) {
			if err := c.Delete(); err != nil {
				return err
			}
		}

		return nil
	})
}

func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}

func itemIDKey(feedID, itemID string) []byte {
	return []byte(feedID + "\x00" + itemID)
}
