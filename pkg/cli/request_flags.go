package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"cohortlens/internal/domain"
)

// requestFlags are the filter and counting flags shared by the query commands.
type requestFlags struct {
	filter  string
	countBy string
}

func (f *requestFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.filter, "filter", "f", "", "Filter expression as JSON, or @file to read it from a file")
	cmd.Flags().StringVar(&f.countBy, "count-by", "", "Count distinct rows of this ancestor table instead of rows")
}

// parse decodes the filter expression and the counting configuration.
func (f *requestFlags) parse() (domain.Filter, *domain.CountBy, error) {
	var countBy *domain.CountBy
	switch v := strings.TrimSpace(f.countBy); v {
	case "", string(domain.CountRows):
	default:
		countBy = &domain.CountBy{Mode: domain.CountParent, TargetTable: v}
	}

	raw := strings.TrimSpace(f.filter)
	if raw == "" {
		return nil, countBy, nil
	}
	data := []byte(raw)
	if path, ok := strings.CutPrefix(raw, "@"); ok {
		b, err := os.ReadFile(path) //nolint:gosec // path is caller-controlled
		if err != nil {
			return nil, nil, fmt.Errorf("read filter file: %w", err)
		}
		data = b
	}
	filter, err := domain.ParseFilter(data)
	if err != nil {
		return nil, nil, fmt.Errorf("--filter: %w", err)
	}
	return filter, countBy, nil
}
