package ledger

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type portfolioFile struct {
	Rows []Row `yaml:"rows"`
}

// LoadPortfolio reads a YAML portfolio:
//
//	rows:
//	  - symbol: ES3
//	    exchange: SGX
func LoadPortfolio(path string) ([]Row, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read portfolio: %w", err)
	}
	return ParsePortfolio(b)
}

func ParsePortfolio(b []byte) ([]Row, error) {
	var pf portfolioFile
	if err := yaml.Unmarshal(b, &pf); err != nil {
		return nil, fmt.Errorf("decode portfolio: %w", err)
	}
	for i := range pf.Rows {
		pf.Rows[i].Symbol = strings.TrimSpace(pf.Rows[i].Symbol)
		pf.Rows[i].Exchange = strings.ToUpper(strings.TrimSpace(pf.Rows[i].Exchange))
		if pf.Rows[i].Symbol == "" {
			return nil, fmt.Errorf("portfolio row %d: empty symbol", i+1)
		}
	}
	return Reindex(pf.Rows), nil
}
