package vault

import (
	"crypto/rand"
	"encoding/base64"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Vault performs credential operations against a store file. Every record in
// a store is expected to be protected by the same master key.
//
// A Vault keeps no state between calls; each operation loads the store,
// works on it and saves it at most once. It is not safe to point several
// processes at the same file concurrently.
type Vault struct {
	log  zerolog.Logger
	rand io.Reader
	now  func() time.Time
}

type Option func(*Vault)

func WithLogger(l zerolog.Logger) Option {
	return func(v *Vault) { v.log = l }
}

// WithRand replaces the source used for salts and IVs.
func WithRand(r io.Reader) Option {
	return func(v *Vault) { v.rand = r }
}

func WithClock(now func() time.Time) Option {
	return func(v *Vault) { v.now = now }
}

func New(opts ...Option) *Vault {
	v := &Vault{
		log:  zerolog.Nop(),
		rand: rand.Reader,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *Vault) load(path string) (*Store, error) {
	s, err := LoadStore(path)
	if errors.Is(err, ErrCorrupt) {
		v.log.Warn().Err(err).Str("path", path).Msg("store file is malformed, treating it as empty")
		return s, nil
	}
	return s, err
}

// recordKey decodes the record's salt and derives its key. The caller owns the
// returned key and must zero it.
func (v *Vault) recordKey(service string, r Record, masterKey string) ([]byte, bool) {
	if err := r.Validate(); err != nil {
		v.log.Debug().Err(err).Str("service", service).Msg("skipping invalid record")
		return nil, false
	}
	salt, err := base64Decode(r.Salt)
	if err != nil {
		v.log.Debug().Err(err).Str("service", service).Msg("invalid salt encoding")
		return nil, false
	}
	mk := []byte(masterKey)
	defer zero(mk)
	key, err := DeriveKey(mk, salt, KeyLen)
	if err != nil {
		v.log.Debug().Err(err).Str("service", service).Msg("key derivation failed")
		return nil, false
	}
	return key, true
}

// open decrypts a token and folds any failure into ok=false after logging it.
func (v *Vault) open(service, field, token string, key []byte) (string, bool) {
	pt, err := Decrypt(token, key)
	if err != nil {
		v.log.Debug().Err(err).Str("service", service).Str("field", field).Msg("decryption failed")
		return "", false
	}
	return pt, true
}

// openUsername is the identity probe shared by every operation: an empty
// username counts as a failed decryption.
func (v *Vault) openUsername(service string, r Record, key []byte) (string, bool) {
	name, ok := v.open(service, "username", r.Username, key)
	if !ok || name == "" {
		return "", false
	}
	return name, true
}

// AddPassword stores a credential for service. A new service gets its own
// salt. An existing service is only updated when the stored username matches
// and the password differs; a different username rejects the write. A stored
// username that decrypts to the empty string never matches, so a record
// created with an empty username can not be updated. The file is saved at
// most once and only when something changed.
func (v *Vault) AddPassword(path, service, username, password, masterKey string) (AddResult, error) {
	s, err := v.load(path)
	if err != nil {
		return AddRejected, err
	}
	l := v.log.With().Str("service", service).Logger()

	existing, ok := s.Get(service)
	if !ok {
		r, err := v.newRecord(username, password, masterKey)
		if err != nil {
			return AddRejected, err
		}
		s.Set(service, r)
		if err := SaveStore(path, s); err != nil {
			return AddRejected, err
		}
		l.Info().Msg("service added")
		return AddCreated, nil
	}

	key, ok := v.recordKey(service, existing, masterKey)
	if !ok {
		l.Warn().Msg("service exists and cannot be verified, refusing to overwrite")
		return AddRejected, nil
	}
	defer zero(key)

	if name, ok := v.openUsername(service, existing, key); !ok || name != username {
		l.Warn().Msg("service already exists with a different username")
		return AddRejected, nil
	}
	if old, ok := v.open(service, "password", existing.Password, key); ok && old == password {
		l.Info().Msg("password unchanged")
		return AddUnchanged, nil
	}

	token, err := encrypt(v.rand, password, key)
	if err != nil {
		return AddRejected, errors.Wrap(err, "encrypt password")
	}
	existing.Password = token
	existing.UpdatedAt = FormatTimestamp(v.now())
	s.Set(service, existing)
	if err := SaveStore(path, s); err != nil {
		return AddRejected, err
	}
	l.Info().Msg("password updated")
	return AddUpdated, nil
}

func (v *Vault) newRecord(username, password, masterKey string) (Record, error) {
	salt, err := randBytes(v.rand, SaltLen)
	if err != nil {
		return Record{}, errors.Wrap(err, "generate salt")
	}
	mk := []byte(masterKey)
	defer zero(mk)
	key, err := DeriveKey(mk, salt, KeyLen)
	if err != nil {
		return Record{}, err
	}
	defer zero(key)

	user, err := encrypt(v.rand, username, key)
	if err != nil {
		return Record{}, errors.Wrap(err, "encrypt username")
	}
	pass, err := encrypt(v.rand, password, key)
	if err != nil {
		return Record{}, errors.Wrap(err, "encrypt password")
	}
	now := FormatTimestamp(v.now())
	return Record{
		Username:  user,
		Password:  pass,
		CreatedAt: now,
		UpdatedAt: now,
		Salt:      base64.URLEncoding.EncodeToString(salt),
	}, nil
}

// GetPassword decrypts the credential stored for service. A missing service,
// a wrong master key and a damaged record all yield ErrNotFound.
func (v *Vault) GetPassword(path, service, masterKey string) (Credential, error) {
	s, err := v.load(path)
	if err != nil {
		return Credential{}, err
	}
	r, ok := s.Get(service)
	if !ok {
		return Credential{}, ErrNotFound
	}
	key, ok := v.recordKey(service, r, masterKey)
	if !ok {
		return Credential{}, ErrNotFound
	}
	defer zero(key)

	name, ok := v.openUsername(service, r, key)
	if !ok {
		return Credential{}, ErrNotFound
	}
	pass, ok := v.open(service, "password", r.Password, key)
	return Credential{Username: name, Password: pass, PasswordOK: ok}, nil
}

// CheckMasterKey reports whether masterKey opens the username of every record.
// An empty store accepts any key.
func (v *Vault) CheckMasterKey(path, masterKey string) (bool, error) {
	s, err := v.load(path)
	if err != nil {
		return false, err
	}
	return v.checkStore(s, masterKey), nil
}

func (v *Vault) checkStore(s *Store, masterKey string) bool {
	for _, service := range s.Services() {
		r, _ := s.Get(service)
		key, ok := v.recordKey(service, r, masterKey)
		if !ok {
			return false
		}
		_, ok = v.openUsername(service, r, key)
		zero(key)
		if !ok {
			return false
		}
	}
	return true
}

// ListServices returns service names in store order without decrypting anything.
func (v *Vault) ListServices(path string) ([]string, error) {
	s, err := v.load(path)
	if err != nil {
		return nil, err
	}
	return s.Services(), nil
}

// Drop empties the store if masterKey verifies against every record. It
// returns false without touching the file otherwise.
func (v *Vault) Drop(path, masterKey string) (bool, error) {
	s, err := v.load(path)
	if err != nil {
		return false, err
	}
	if !v.checkStore(s, masterKey) {
		v.log.Warn().Str("path", path).Msg("refusing to drop store: invalid master key")
		return false, nil
	}
	if err := SaveStore(path, NewStore()); err != nil {
		return false, err
	}
	v.log.Info().Str("path", path).Int("services", s.Len()).Msg("store dropped")
	return true, nil
}
