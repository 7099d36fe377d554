package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nanobanana/supermarket/internal/models"
)

// document is the on-disk shape: the whole store is one JSON file.
type document struct {
	Users map[string]*models.Account `json:"users"`
	Admin models.Stats               `json:"admin"`
}

// FileStore keeps every account in a single JSON document that is read fully
// and rewritten fully on each mutation. A process-wide mutex serializes the
// read-modify-write cycle, and writes go through a temp file plus rename so a
// crash cannot leave a half-written store behind.
type FileStore struct {
	mu             sync.Mutex
	path           string
	initialCredits int
	now            func() time.Time
}

// NewFileStore opens (or creates) the store at <dir>/users.json.
func NewFileStore(dir string, initialCredits int) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	s := &FileStore{
		path:           filepath.Join(dir, "users.json"),
		initialCredits: initialCredits,
		now:            time.Now,
	}
	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		if err := s.write(&document{Users: map[string]*models.Account{}}); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, fmt.Errorf("stat store file: %w", err)
	}
	return s, nil
}

func (s *FileStore) Register(ctx context.Context, phone, password string) (*models.Account, error) {
	if err := validateCredentials(phone, password); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	if _, exists := doc.Users[phone]; exists {
		return nil, ErrDuplicate
	}

	account := &models.Account{
		Phone:         phone,
		Password:      password,
		RemainingUses: s.initialCredits,
		CreatedAt:     s.now().UTC(),
	}
	doc.Users[phone] = account
	doc.Admin.TotalUsers++

	if err := s.write(doc); err != nil {
		return nil, err
	}
	copied := *account
	return &copied, nil
}

func (s *FileStore) Authenticate(ctx context.Context, phone, password string) (*models.Account, error) {
	if !ValidPhone(phone) {
		return nil, ErrInvalidPhone
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	account, ok := doc.Users[phone]
	if !ok {
		return nil, ErrNotFound
	}
	if account.Password != password {
		return nil, ErrWrongPassword
	}

	loggedIn := s.now().UTC()
	account.LastLoginAt = &loggedIn
	if err := s.write(doc); err != nil {
		return nil, err
	}
	copied := *account
	return &copied, nil
}

func (s *FileStore) Get(ctx context.Context, phone string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	account, ok := doc.Users[phone]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *account
	return &copied, nil
}

func (s *FileStore) ChargeGeneration(ctx context.Context, phone string) (*models.Usage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	account, ok := doc.Users[phone]
	if !ok {
		return nil, ErrNotFound
	}
	if account.RemainingUses <= 0 {
		return nil, ErrExhausted
	}

	account.RemainingUses--
	account.ImagesGenerated++
	doc.Admin.TotalImages++

	if err := s.write(doc); err != nil {
		return nil, err
	}
	return &models.Usage{
		RemainingUses:   account.RemainingUses,
		ImagesGenerated: account.ImagesGenerated,
	}, nil
}

func (s *FileStore) ListAll(ctx context.Context) ([]models.Account, models.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return nil, models.Stats{}, err
	}
	accounts := make([]models.Account, 0, len(doc.Users))
	for _, account := range doc.Users {
		accounts = append(accounts, *account)
	}
	return accounts, doc.Admin, nil
}

func (s *FileStore) ResetUses(ctx context.Context, phone string, uses int) error {
	if uses < 0 {
		return fmt.Errorf("uses must not be negative, got %d", uses)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	account, ok := doc.Users[phone]
	if !ok {
		return ErrNotFound
	}
	account.RemainingUses = uses
	return s.write(doc)
}

func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) read() (*document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read store file: %w", err)
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode store file: %w", err)
	}
	if doc.Users == nil {
		doc.Users = map[string]*models.Account{}
	}
	return &doc, nil
}

func (s *FileStore) write(doc *document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode store file: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write store file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace store file: %w", err)
	}
	return nil
}
