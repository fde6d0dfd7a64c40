package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/Dan9191/bank-sync/internal/ledger"
	"github.com/Dan9191/bank-sync/internal/models"
	"github.com/beevik/etree"
	"github.com/sirupsen/logrus"
)

// IngestResult summarizes a statement directory import
type IngestResult struct {
	Files    int      `json:"files"`
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

// IngestDirectory imports every *.json and *.xml statement file below dir for a user.
// Broken files and invalid records are counted and skipped; a storage failure stops the import.
func (s *Service) IngestDirectory(ctx context.Context, userID int64, dir string) (IngestResult, error) {
	var res IngestResult
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return res, err
	}
	log := s.log.WithFields(logrus.Fields{"user_id": userID, "dir": dir})

	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == dir {
				return walkErr
			}
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", path, walkErr))
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		var txs []models.Transaction
		var skipped int
		var readErr error
		switch strings.ToLower(filepath.Ext(path)) {
		case ".json":
			txs, skipped, readErr = readJSONStatement(path)
		case ".xml":
			txs, skipped, readErr = readXMLStatement(path)
		default:
			return nil
		}
		res.Files++
		if readErr != nil {
			log.Warnf("Skipping statement file %s: %v", path, readErr)
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", path, readErr))
			return nil
		}
		res.Skipped += skipped

		expenses := ledger.Normalize(txs, user, "", s.config.CashType)
		n, err := s.store.InsertExpenses(ctx, expenses)
		if err != nil {
			return err
		}
		res.Imported += n
		log.WithFields(logrus.Fields{"file": path, "records": len(txs), "inserted": n}).Debug("Statement file imported")
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("failed to ingest %s: %w", dir, err)
	}

	log.WithFields(logrus.Fields{
		"files":    res.Files,
		"imported": res.Imported,
		"skipped":  res.Skipped,
		"errors":   len(res.Errors),
	}).Info("Statement directory imported")
	return res, nil
}

// readJSONStatement parses a file holding an array of statement records
func readJSONStatement(path string) ([]models.Transaction, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, err
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, 0, fmt.Errorf("failed to decode statement: %w", err)
	}

	txs := make([]models.Transaction, 0, len(raws))
	skipped := 0
	for _, raw := range raws {
		tx, err := ledger.ParseRecord(raw)
		if err != nil {
			if !isValidation(err) {
				return nil, 0, err
			}
			skipped++
			continue
		}
		txs = append(txs, tx)
	}
	return txs, skipped, nil
}

// readXMLStatement parses <statement><item>...</item></statement>
func readXMLStatement(path string) ([]models.Transaction, int, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromFile(path); err != nil {
		return nil, 0, fmt.Errorf("failed to parse XML: %w", err)
	}
	root := doc.SelectElement("statement")
	if root == nil {
		return nil, 0, fmt.Errorf("statement element not found")
	}

	items := root.SelectElements("item")
	txs := make([]models.Transaction, 0, len(items))
	skipped := 0
	for _, item := range items {
		tx, err := ledger.ParseXMLRecord(item)
		if err != nil {
			if !isValidation(err) {
				return nil, 0, err
			}
			skipped++
			continue
		}
		txs = append(txs, tx)
	}
	return txs, skipped, nil
}

func isValidation(err error) bool {
	var verr *ledger.ValidationError
	return errors.As(err, &verr)
}
