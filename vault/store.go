package vault

import (
	"bytes"
	"encoding/json"
	"io"
	"os"

	"github.com/pkg/errors"
)

const storePerm = 0600

var errMalformed = errors.New("store is not a JSON object of records")

// Store maps service names to records and remembers the order in which
// services were first seen.
type Store struct {
	order   []string
	records map[string]Record
}

func NewStore() *Store {
	return &Store{records: make(map[string]Record)}
}

func (s *Store) Len() int { return len(s.order) }

// Services returns the service names in store order.
func (s *Store) Services() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

func (s *Store) Get(service string) (Record, bool) {
	r, ok := s.records[service]
	return r, ok
}

// Set inserts a new service at the end or replaces an existing one in place.
func (s *Store) Set(service string, r Record) {
	if _, ok := s.records[service]; !ok {
		s.order = append(s.order, service)
	}
	s.records[service] = r
}

func (s *Store) Delete(service string) {
	if _, ok := s.records[service]; !ok {
		return
	}
	delete(s.records, service)
	for i, name := range s.order {
		if name == service {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

func (s *Store) MarshalJSON() ([]byte, error) {
	buf := &bytes.Buffer{}
	buf.WriteByte('{')
	for i, name := range s.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encodeValue(buf, name); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := encodeValue(buf, s.records[name]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func encodeValue(buf *bytes.Buffer, v any) error {
	tmp := &bytes.Buffer{}
	enc := json.NewEncoder(tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	buf.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
	return nil
}

// UnmarshalJSON keeps the document's key order. A repeated service keeps its
// first position and its last value.
func (s *Store) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return errors.Wrap(errMalformed, err.Error())
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errMalformed
	}

	fresh := NewStore()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return errors.Wrap(errMalformed, err.Error())
		}
		name, ok := tok.(string)
		if !ok {
			return errMalformed
		}
		var r Record
		if err := dec.Decode(&r); err != nil {
			return errors.Wrapf(errMalformed, "service %q: %v", name, err)
		}
		fresh.Set(name, r)
	}
	if _, err := dec.Token(); err != nil {
		return errors.Wrap(errMalformed, err.Error())
	}
	if _, err := dec.Token(); err != io.EOF {
		return errors.Wrap(errMalformed, "trailing data after object")
	}

	*s = *fresh
	return nil
}

// LoadStore reads the store at path. A missing file yields an empty store; so
// does content that is not a JSON object of records, in which case the parse
// error is returned alongside the empty store wrapped as ErrCorrupt so callers
// can log it. Only read failures are returned with a nil store.
func LoadStore(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewStore(), nil
		}
		return nil, errors.Wrapf(err, "read store %q", path)
	}
	s := NewStore()
	if err := json.Unmarshal(data, s); err != nil {
		return NewStore(), errors.Wrap(ErrCorrupt, err.Error())
	}
	return s, nil
}

// SaveStore replaces the file at path with the whole store, pretty-printed.
func SaveStore(path string, s *Store) error {
	compact, err := s.MarshalJSON()
	if err != nil {
		return errors.Wrap(err, "encode store")
	}
	out := &bytes.Buffer{}
	if err := json.Indent(out, compact, "", "    "); err != nil {
		return errors.Wrap(err, "indent store")
	}
	out.WriteByte('\n')
	return atomicWriteFile(path, out.Bytes(), storePerm)
}
