package speech

import (
	"sync"
	"time"
)

// Record is the synthesized audio of one message.
type Record struct {
	MessageID  string
	Audio      []byte // shared, must not be mutated
	MIMEType   string
	Duration   time.Duration
	SourceText string
	Voice      string
	Language   string
	CreatedAt  time.Time
}

// RecordStore maps message identity to its audio record. It holds at most
// one record per message.
type RecordStore struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewRecordStore creates an empty store.
func NewRecordStore() *RecordStore {
	return &RecordStore{records: make(map[string]*Record)}
}

// Get returns a copy of the record for messageID.
func (s *RecordStore) Get(messageID string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[messageID]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// Has reports whether messageID has a record.
func (s *RecordStore) Has(messageID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[messageID]
	return ok
}

// Put stores rec unless the message already has a record, in which case the
// existing one is kept and returned with stored=false.
func (s *RecordStore) Put(rec Record) (current Record, stored bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.records[rec.MessageID]; ok {
		return *existing, false
	}
	s.records[rec.MessageID] = &rec
	return rec, true
}

// Delete drops the record for messageID, reporting whether one existed.
func (s *RecordStore) Delete(messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.records[messageID]
	delete(s.records, messageID)
	return ok
}

// Len returns the number of records.
func (s *RecordStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Clear drops every record.
func (s *RecordStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]*Record)
}
