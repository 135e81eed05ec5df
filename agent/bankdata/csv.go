package bankdata

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	contractx "github.com/agilbank/concierge/agent/contract"
	statex "github.com/agilbank/concierge/agent/state"
)

const (
	customersFile     = "customers.csv"
	scoreBandsFile    = "score_bands.csv"
	limitRequestsFile = "limit_requests.csv"
)

var customerHeader = []string{"customer_id", "birth_date", "name", "credit_limit", "score"}

// CSVStore is a file-backed Gateway. Writes are serialized by a mutex so
// two sessions touching the same customer id cannot interleave a
// read-modify-write.
type CSVStore struct {
	mu  sync.Mutex
	dir string
}

type CSVConfig struct {
	Dir string `envconfig:"DIR" split_words:"true" default:"data"`
}

func NewCSVStore(cfg CSVConfig) (*CSVStore, error) {
	dir := cfg.Dir
	if dir == "" {
		return nil, errors.New("data dir is required")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: stat data dir: %v", contractx.ErrGatewayUnavailable, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("data path %q is not a directory", dir)
	}
	return &CSVStore{dir: dir}, nil
}

func (s *CSVStore) GetCustomer(_ context.Context, id string) (statex.CustomerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.readCustomers()
	if err != nil {
		return statex.CustomerRecord{}, err
	}
	for _, rec := range rows {
		if rec.ID == id {
			return rec, nil
		}
	}
	return statex.CustomerRecord{}, contractx.ErrCustomerNotFound
}

func (s *CSVStore) MaxLimitForScore(_ context.Context, score int) (float64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.readAll(scoreBandsFile)
	if err != nil {
		return 0, false, err
	}
	for i, row := range records {
		if i == 0 || len(row) < 3 {
			continue
		}
		minScore, err1 := strconv.Atoi(row[0])
		maxScore, err2 := strconv.Atoi(row[1])
		maxLimit, err3 := strconv.ParseFloat(row[2], 64)
		if err1 != nil || err2 != nil || err3 != nil {
			return 0, false, fmt.Errorf("%w: malformed score band row %d", contractx.ErrGatewayUnavailable, i)
		}
		if score >= minScore && score <= maxScore {
			return maxLimit, true, nil
		}
	}
	return 0, false, nil
}

func (s *CSVStore) PutCustomer(_ context.Context, rec statex.CustomerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.readCustomers()
	if err != nil {
		return err
	}

	found := false
	for i := range rows {
		if rows[i].ID == rec.ID {
			rows[i] = rec
			found = true
			break
		}
	}
	if !found {
		rows = append(rows, rec)
	}

	return s.writeCustomers(rows)
}

func (s *CSVStore) AppendLimitRequest(_ context.Context, req LimitRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, limitRequestsFile)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", contractx.ErrGatewayUnavailable, limitRequestsFile, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{
		req.CustomerID,
		req.RequestedAt.UTC().Format(time.RFC3339),
		strconv.FormatFloat(req.CurrentLimit, 'f', 2, 64),
		strconv.FormatFloat(req.RequestedLimit, 'f', 2, 64),
		req.Status,
	}); err != nil {
		return fmt.Errorf("%w: append limit request: %v", contractx.ErrGatewayUnavailable, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("%w: flush limit request: %v", contractx.ErrGatewayUnavailable, err)
	}
	return nil
}

func (s *CSVStore) readCustomers() ([]statex.CustomerRecord, error) {
	records, err := s.readAll(customersFile)
	if err != nil {
		return nil, err
	}
	out := make([]statex.CustomerRecord, 0, len(records))
	for i, row := range records {
		if i == 0 {
			continue
		}
		if len(row) < 5 {
			return nil, fmt.Errorf("%w: malformed customer row %d", contractx.ErrGatewayUnavailable, i)
		}
		limit, err1 := strconv.ParseFloat(row[3], 64)
		score, err2 := strconv.Atoi(row[4])
		if err1 != nil || err2 != nil {
			return nil, fmt.Errorf("%w: malformed customer row %d", contractx.ErrGatewayUnavailable, i)
		}
		out = append(out, statex.CustomerRecord{
			ID:          row[0],
			BirthDate:   row[1],
			Name:        row[2],
			CreditLimit: limit,
			Score:       score,
		})
	}
	return out, nil
}

func (s *CSVStore) writeCustomers(rows []statex.CustomerRecord) error {
	path := filepath.Join(s.dir, customersFile)
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("%w: create %s: %v", contractx.ErrGatewayUnavailable, customersFile, err)
	}

	w := csv.NewWriter(f)
	records := [][]string{customerHeader}
	for _, rec := range rows {
		records = append(records, []string{
			rec.ID,
			rec.BirthDate,
			rec.Name,
			strconv.FormatFloat(rec.CreditLimit, 'f', 2, 64),
			strconv.Itoa(rec.Score),
		})
	}
	if err := w.WriteAll(records); err != nil {
		f.Close()
		return fmt.Errorf("%w: write %s: %v", contractx.ErrGatewayUnavailable, customersFile, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %v", contractx.ErrGatewayUnavailable, customersFile, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("%w: replace %s: %v", contractx.ErrGatewayUnavailable, customersFile, err)
	}
	return nil
}

func (s *CSVStore) readAll(name string) ([][]string, error) {
	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", contractx.ErrGatewayUnavailable, name, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", contractx.ErrGatewayUnavailable, name, err)
	}
	return records, nil
}
