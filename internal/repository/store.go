package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-ems/internal/storage"
)

// Store is the typed layer over a storage.PartitionStore. Every mutation is a
// full read-modify-write of the affected partitions under one mutex, so callers
// in this process never observe a half-applied change.
type Store struct {
	parts storage.PartitionStore
	mu    sync.Mutex
	log   zerolog.Logger
}

// NewStore wraps parts.
func NewStore(parts storage.PartitionStore, log zerolog.Logger) *Store {
	return &Store{
		parts: parts,
		log:   log.With().Str("component", "repository").Logger(),
	}
}

// Init writes the empty default document for every partition that does not
// exist yet. Existing partitions are left alone, even when corrupt.
func (s *Store) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	defaults := map[string]document{
		storage.Users:     &usersDocument{},
		storage.Questions: &questionsDocument{},
		storage.Exams:     &examsDocument{},
		storage.Results:   &resultsDocument{},
	}
	for _, name := range []string{storage.Users, storage.Questions, storage.Exams, storage.Results} {
		_, err := s.parts.Read(ctx, name)
		if err == nil {
			continue
		}
		if !errors.Is(err, storage.ErrNotExist) {
			return fmt.Errorf("probe %s: %w", name, err)
		}
		if err := s.write(ctx, name, defaults[name]); err != nil {
			return err
		}
		s.log.Info().Str("partition", name).Msg("Initialized empty partition")
	}
	return nil
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.parts.Close()
}

// document is a partition body. normalize replaces nil slices with empty ones
// so a decoded document always has the default shape.
type document interface {
	normalize()
}

// read decodes the partition into doc. Missing and undecodable partitions
// leave doc at its empty default and are not errors; only a failing backend
// is reported.
func (s *Store) read(ctx context.Context, name string, doc document) error {
	defer doc.normalize()

	data, err := s.parts.Read(ctx, name)
	if errors.Is(err, storage.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}

	if err := json.Unmarshal(data, doc); err != nil {
		s.log.Warn().Err(err).Str("partition", name).Msg("Corrupt partition, using empty default")
		reset(doc)
	}
	return nil
}

// load is read for query paths: a failing backend also degrades to the empty
// default instead of surfacing.
func (s *Store) load(ctx context.Context, name string, doc document) {
	if err := s.read(ctx, name, doc); err != nil {
		s.log.Warn().Err(err).Str("partition", name).Msg("Partition unreadable, using empty default")
		reset(doc)
		doc.normalize()
	}
}

func (s *Store) write(ctx context.Context, name string, doc document) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if err := s.parts.Write(ctx, name, buf.Bytes()); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

func reset(doc document) {
	switch d := doc.(type) {
	case *usersDocument:
		*d = usersDocument{}
	case *questionsDocument:
		*d = questionsDocument{}
	case *examsDocument:
		*d = examsDocument{}
	case *resultsDocument:
		*d = resultsDocument{}
	}
}
