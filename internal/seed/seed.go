// Package seed fills an empty RecordStore at startup, first from an NDJSON
// export and otherwise from a remote {"users":[...]} endpoint.
package seed

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	rc "github.com/unkn0wn-root/recordcache"
)

type Options struct {
	Store rc.RecordStore
	// File is an NDJSON export, one user per line. Missing files are skipped.
	File string
	// APIURL is fetched when File yields no users.
	APIURL  string
	Client  *http.Client
	Timeout time.Duration
	Logger  rc.Logger
}

type Seeder struct {
	store  rc.RecordStore
	file   string
	apiURL string
	client *http.Client
	log    rc.Logger
}

func New(opts Options) *Seeder {
	log := opts.Logger
	if log == nil {
		log = rc.NopLogger{}
	}
	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Seeder{store: opts.Store, file: opts.File, apiURL: opts.APIURL, client: client, log: log}
}

// Run seeds the store when it is empty and returns how many users were saved.
// Source failures are logged and yield 0; only store errors are returned.
func (s *Seeder) Run(ctx context.Context) (int, error) {
	n, err := s.store.Count(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info("user data already present, skipping seed", rc.Fields{"count": n})
		return 0, nil
	}

	users := s.fromFile()
	if len(users) == 0 {
		users = s.fromAPI(ctx)
	}
	if len(users) == 0 {
		s.log.Warn("no users were loaded from either source", nil)
		return 0, nil
	}
	for _, u := range users {
		if err := s.store.Save(ctx, u); err != nil {
			return 0, err
		}
	}
	s.log.Info("seeded user data", rc.Fields{"count": len(users)})
	return len(users), nil
}

func (s *Seeder) fromFile() []rc.User {
	if s.file == "" {
		return nil
	}
	f, err := os.Open(s.file)
	if errors.Is(err, os.ErrNotExist) {
		s.log.Info("seed file not found", rc.Fields{"file": s.file})
		return nil
	}
	if err != nil {
		s.log.Warn("failed to open seed file", rc.Fields{"file": s.file, "err": err})
		return nil
	}
	defer f.Close()

	users, err := ParseNDJSON(f, s.log)
	if err != nil {
		s.log.Warn("failed to read seed file", rc.Fields{"file": s.file, "err": err})
	}
	s.log.Info("loaded users from file", rc.Fields{"file": s.file, "count": len(users)})
	return users
}

func (s *Seeder) fromAPI(ctx context.Context) []rc.User {
	if s.apiURL == "" {
		return nil
	}
	s.log.Info("fetching users from API", rc.Fields{"url": s.apiURL})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.apiURL, nil)
	if err != nil {
		s.log.Error("failed to build seed request", rc.Fields{"err": err})
		return nil
	}
	resp, err := s.client.Do(req)
	if err != nil {
		s.log.Error("failed to fetch users from API", rc.Fields{"err": err})
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		s.log.Error("failed to fetch users from API", rc.Fields{"status": resp.StatusCode})
		return nil
	}
	users, err := ParseAPI(resp.Body, s.log)
	if err != nil {
		s.log.Error("failed to decode API users", rc.Fields{"err": err})
		return nil
	}
	s.log.Info("fetched users from API", rc.Fields{"count": len(users)})
	return users
}

// exportUser is one line of a document-store export. birthDate is either a
// plain string or {"$date": "<RFC 3339>"}.
type exportUser struct {
	rc.User
	BirthDate json.RawMessage `json:"birthDate"`
}

// ParseNDJSON reads one user per line. Lines that fail to parse are logged
// and skipped.
func ParseNDJSON(r io.Reader, log rc.Logger) ([]rc.User, error) {
	var users []rc.User
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for line := 1; sc.Scan(); line++ {
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var e exportUser
		if err := json.Unmarshal([]byte(text), &e); err != nil {
			log.Warn("failed to parse user", rc.Fields{"line": line, "err": err})
			continue
		}
		u := e.User
		bd, err := exportDate(e.BirthDate)
		if err != nil {
			log.Warn("failed to parse user", rc.Fields{"line": line, "err": err})
			continue
		}
		u.BirthDate = bd
		users = append(users, u)
	}
	return users, sc.Err()
}

func exportDate(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var wrapped struct {
		Date string `json:"$date"`
	}
	if raw[0] == '{' {
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return "", err
		}
		if len(wrapped.Date) < 10 {
			return "", fmt.Errorf("invalid $date %q", wrapped.Date)
		}
		return checkDate(wrapped.Date[:10])
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", err
	}
	return checkDate(s)
}

func checkDate(s string) (string, error) {
	if _, err := time.Parse("2006-01-02", s); err != nil {
		return "", err
	}
	return s, nil
}

type apiUser struct {
	rc.User
	BirthDate string `json:"birthDate"`
}

// ParseAPI decodes {"users":[...]} and normalises dates such as "1996-5-30"
// to "1996-05-30". Unparseable dates are logged and dropped.
func ParseAPI(r io.Reader, log rc.Logger) ([]rc.User, error) {
	var body struct {
		Users []apiUser `json:"users"`
	}
	if err := json.NewDecoder(r).Decode(&body); err != nil {
		return nil, err
	}
	users := make([]rc.User, 0, len(body.Users))
	for _, a := range body.Users {
		u := a.User
		bd, err := NormalizeDate(a.BirthDate)
		if err != nil {
			log.Warn("could not parse birthDate", rc.Fields{"id": u.ID, "birthDate": a.BirthDate})
		}
		u.BirthDate = bd
		users = append(users, u)
	}
	return users, nil
}

// NormalizeDate zero-pads month and day of a Y-M-D date.
func NormalizeDate(raw string) (string, error) {
	if raw == "" {
		return "", nil
	}
	parts := strings.Split(raw, "-")
	if len(parts) != 3 {
		return "", fmt.Errorf("invalid date %q", raw)
	}
	for i := 1; i < 3; i++ {
		if len(parts[i]) == 1 {
			parts[i] = "0" + parts[i]
		}
	}
	return checkDate(strings.Join(parts, "-"))
}
