package assets

import (
	"fmt"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Catalog resolves asset specifications to full tokens. Queries that do not
// resolve are absent from the returned map, which is keyed by TokenQuery.ID.
type Catalog interface {
	Tokens(queries []TokenQuery) (map[string]Token, error)
}

// Service is the live asset catalog backed by a Store.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store}
}

// Seed inserts or updates the catalog entries described by seed strings of
// the form "blockchain|tokentype;Name;CODE;decimals".
func (s *Service) Seed(entries []string) error {
	for _, e := range entries {
		t, err := ParseSeed(e)
		if err != nil {
			return err
		}
		if err := s.AddToken(t); err != nil {
			return err
		}
		log.
			WithFields(log.Fields{"asset": t.Query.ID(), "code": t.Code}).
			Debug("Seeded asset")
	}
	return nil
}

func (s *Service) AddToken(t Token) error {
	if t.Name == "" {
		return fmt.Errorf(`not a valid name: "%s"`, t.Name)
	}
	if t.Decimals < 0 {
		return fmt.Errorf("not a valid decimals value: %d", t.Decimals)
	}
	return s.store.Upsert(&AssetRecord{
		TokenQueryID: t.Query.ID(),
		Name:         t.Name,
		Code:         t.Code,
		Decimals:     t.Decimals,
		Icon:         t.Icon,
	})
}

func (s *Service) RemoveToken(q TokenQuery) error {
	return s.store.Remove(q.ID())
}

func (s *Service) ListTokens() ([]Token, error) {
	rr, err := s.store.List()
	if err != nil {
		return nil, err
	}
	tt := make([]Token, 0, len(rr))
	for _, r := range rr {
		t, err := r.token()
		if err != nil {
			log.
				WithFields(log.Fields{"asset": r.TokenQueryID, "error": err}).
				Warn("skipping invalid catalog entry")
			continue
		}
		tt = append(tt, t)
	}
	return tt, nil
}

func (s *Service) Tokens(queries []TokenQuery) (map[string]Token, error) {
	ids := make([]string, len(queries))
	for i, q := range queries {
		ids[i] = q.ID()
	}

	rr, err := s.store.Find(ids)
	if err != nil {
		return nil, err
	}

	res := make(map[string]Token, len(rr))
	for _, r := range rr {
		t, err := r.token()
		if err != nil {
			continue
		}
		res[r.TokenQueryID] = t
	}
	return res, nil
}

// Token resolves a single query.
func (s *Service) Token(q TokenQuery) (Token, bool, error) {
	res, err := s.Tokens([]TokenQuery{q})
	if err != nil {
		return Token{}, false, err
	}
	t, ok := res[q.ID()]
	return t, ok, nil
}

func (r AssetRecord) token() (Token, error) {
	q, err := ParseTokenQuery(r.TokenQueryID)
	if err != nil {
		return Token{}, err
	}
	return Token{Query: q, Name: r.Name, Code: r.Code, Decimals: r.Decimals, Icon: r.Icon}, nil
}

func ParseSeed(entry string) (Token, error) {
	ss := strings.Split(entry, ";")
	if len(ss) != 4 {
		return Token{}, fmt.Errorf("invalid asset entry %q, expected 'blockchain|tokentype;Name;CODE;decimals'", entry)
	}

	q, err := ParseTokenQuery(strings.TrimSpace(ss[0]))
	if err != nil {
		return Token{}, err
	}

	decimals, err := strconv.Atoi(strings.TrimSpace(ss[3]))
	if err != nil {
		return Token{}, fmt.Errorf("invalid decimals in asset entry %q: %w", entry, err)
	}

	return Token{
		Query:    q,
		Name:     strings.TrimSpace(ss[1]),
		Code:     strings.TrimSpace(ss[2]),
		Decimals: decimals,
	}, nil
}
