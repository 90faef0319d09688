package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

var errWrongType = errors.New("operation against a key holding the wrong kind of value")

type valueKind int

const (
	kindString valueKind = iota
	kindHash
	kindSet
	kindZSet
	kindList
)

type item struct {
	kind     valueKind
	str      string
	hash     map[string]string
	set      map[string]struct{}
	zset     map[string]float64
	list     []string
	expireAt time.Time
}

// KVStore хранит данные в памяти процесса. Семантика совпадает с Redis для
// используемого подмножества команд, включая TTL.
type KVStore struct {
	items map[string]*item
	now   func() time.Time

	mu sync.Mutex
}

func NewKVStore() *KVStore {
	return &KVStore{
		items: make(map[string]*item),
		now:   time.Now,
	}
}

// lookup returns the live item under key, dropping it if it has expired.
func (s *KVStore) lookup(key string) *item {
	it, ok := s.items[key]
	if !ok {
		return nil
	}

	if !it.expireAt.IsZero() && !s.now().Before(it.expireAt) {
		delete(s.items, key)
		return nil
	}

	return it
}

func (s *KVStore) typed(key string, kind valueKind) (*item, error) {
	it := s.lookup(key)
	if it == nil {
		return nil, nil
	}

	if it.kind != kind {
		return nil, errWrongType
	}

	return it, nil
}

// ensure returns the item under key, creating an empty one of kind if absent.
func (s *KVStore) ensure(key string, kind valueKind) (*item, error) {
	it, err := s.typed(key, kind)
	if err != nil {
		return nil, err
	}

	if it == nil {
		it = &item{kind: kind}
		switch kind {
		case kindHash:
			it.hash = make(map[string]string)
		case kindSet:
			it.set = make(map[string]struct{})
		case kindZSet:
			it.zset = make(map[string]float64)
		}
		s.items[key] = it
	}

	return it, nil
}

// dropIfEmpty removes containers left without elements, as Redis does.
func (s *KVStore) dropIfEmpty(key string, it *item) {
	empty := false
	switch it.kind {
	case kindHash:
		empty = len(it.hash) == 0
	case kindSet:
		empty = len(it.set) == 0
	case kindZSet:
		empty = len(it.zset) == 0
	case kindList:
		empty = len(it.list) == 0
	}

	if empty {
		delete(s.items, key)
	}
}

func (s *KVStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, err := s.typed(key, kindString)
	if err != nil || it == nil {
		return "", false, err
	}

	return it.str, true, nil
}

func (s *KVStore) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lookup(key) != nil {
		return false, nil
	}

	it := &item{kind: kindString, str: value}
	if ttl > 0 {
		it.expireAt = s.now().Add(ttl)
	}
	s.items[key] = it

	return true, nil
}

func (s *KVStore) HSet(_ context.Context, key string, values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, err := s.ensure(key, kindHash)
	if err != nil {
		return err
	}

	for k, v := range values {
		it.hash[k] = v
	}

	return nil
}

func (s *KVStore) HGet(_ context.Context, key, field string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, err := s.typed(key, kindHash)
	if err != nil || it == nil {
		return "", false, err
	}

	v, ok := it.hash[field]
	return v, ok, nil
}

func (s *KVStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make(map[string]string)

	it, err := s.typed(key, kindHash)
	if err != nil || it == nil {
		return result, err
	}

	for k, v := range it.hash {
		result[k] = v
	}

	return result, nil
}

func (s *KVStore) HDel(_ context.Context, key string, fields ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, err := s.typed(key, kindHash)
	if err != nil || it == nil {
		return err
	}

	for _, f := range fields {
		delete(it.hash, f)
	}
	s.dropIfEmpty(key, it)

	return nil
}

func (s *KVStore) SAdd(_ context.Context, key string, members ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, err := s.ensure(key, kindSet)
	if err != nil {
		return err
	}

	for _, m := range members {
		it.set[m] = struct{}{}
	}

	return nil
}

func (s *KVStore) SRem(_ context.Context, key string, members ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, err := s.typed(key, kindSet)
	if err != nil || it == nil {
		return err
	}

	for _, m := range members {
		delete(it.set, m)
	}
	s.dropIfEmpty(key, it)

	return nil
}

func (s *KVStore) SMembers(_ context.Context, key string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, err := s.typed(key, kindSet)
	if err != nil || it == nil {
		return nil, err
	}

	members := make([]string, 0, len(it.set))
	for m := range it.set {
		members = append(members, m)
	}
	sort.Strings(members)

	return members, nil
}

func (s *KVStore) ZAdd(_ context.Context, key string, score float64, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, err := s.ensure(key, kindZSet)
	if err != nil {
		return err
	}

	it.zset[member] = score

	return nil
}

func (s *KVStore) ZRem(_ context.Context, key string, members ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, err := s.typed(key, kindZSet)
	if err != nil || it == nil {
		return err
	}

	for _, m := range members {
		delete(it.zset, m)
	}
	s.dropIfEmpty(key, it)

	return nil
}

func (s *KVStore) ZRange(_ context.Context, key string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, err := s.typed(key, kindZSet)
	if err != nil || it == nil {
		return nil, err
	}

	members := make([]string, 0, len(it.zset))
	for m := range it.zset {
		members = append(members, m)
	}

	sort.Slice(members, func(i, j int) bool {
		si, sj := it.zset[members[i]], it.zset[members[j]]
		if si != sj {
			return si < sj
		}
		return members[i] < members[j]
	})

	return members, nil
}

func (s *KVStore) ZCard(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, err := s.typed(key, kindZSet)
	if err != nil || it == nil {
		return 0, err
	}

	return int64(len(it.zset)), nil
}

func (s *KVStore) RPush(_ context.Context, key string, values ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, err := s.ensure(key, kindList)
	if err != nil {
		return err
	}

	it.list = append(it.list, values...)

	return nil
}

// bounds converts Redis-style inclusive indexes (negative counts from the end)
// into a half-open slice range.
func bounds(n int, start, stop int64) (int, int) {
	length := int64(n)

	if start < 0 {
		start += length
	}
	if stop < 0 {
		stop += length
	}
	if start < 0 {
		start = 0
	}
	if stop >= length {
		stop = length - 1
	}

	if start > stop || start >= length {
		return 0, 0
	}

	return int(start), int(stop) + 1
}

func (s *KVStore) LTrim(_ context.Context, key string, start, stop int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, err := s.typed(key, kindList)
	if err != nil || it == nil {
		return err
	}

	from, to := bounds(len(it.list), start, stop)
	it.list = append([]string(nil), it.list[from:to]...)
	s.dropIfEmpty(key, it)

	return nil
}

func (s *KVStore) LRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, err := s.typed(key, kindList)
	if err != nil || it == nil {
		return nil, err
	}

	from, to := bounds(len(it.list), start, stop)

	return append([]string(nil), it.list[from:to]...), nil
}

func (s *KVStore) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range keys {
		delete(s.items, k)
	}

	return nil
}

func (s *KVStore) Expire(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	it := s.lookup(key)
	if it == nil {
		return nil
	}

	if ttl <= 0 {
		delete(s.items, key)
		return nil
	}

	it.expireAt = s.now().Add(ttl)

	return nil
}

func (s *KVStore) Ping(context.Context) error {
	return nil
}

func (s *KVStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = make(map[string]*item)

	return nil
}
