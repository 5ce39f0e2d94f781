package claims

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

func (s *mockStore) GetJSON(_ context.Context, key string, dst interface{}) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return false, s.getErr
	}
	raw, ok := s.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dst)
}

func (s *mockStore) SetJSON(_ context.Context, key string, v interface{}, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.data[key] = raw
	s.sets++
	return nil
}

func (s *mockStore) DeletePrefix(_ context.Context, prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			delete(s.data, k)
		}
	}
	s.deletes++
	return nil
}
